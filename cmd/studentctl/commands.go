package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Ratio1/firefly_student_go/internal/config"
	"github.com/Ratio1/firefly_student_go/internal/console"
	"github.com/Ratio1/firefly_student_go/internal/logger"
	"github.com/Ratio1/firefly_student_go/pkg/student"
)

type globalFlags struct {
	endpoint string
	mode     string
	timeout  time.Duration
	envFile  string
	verbose  bool
}

type recordFlags struct {
	id, name, age, grade, status string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "studentctl",
		Short:         "Submit student record operations to a FireFly node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.endpoint, "endpoint", "", "node endpoint base URL (overrides FIREFLY_NODE_URL)")
	pf.StringVar(&g.mode, "mode", "", "runtime mode: http or mock (overrides FIREFLY_RUNTIME_MODE)")
	pf.DurationVar(&g.timeout, "timeout", 0, "request timeout (overrides FIREFLY_TIMEOUT)")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded when present")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log each request to stderr")

	root.AddCommand(
		newRecordCmd(&g, student.OpCreate, "create", "Create a student record", true),
		newRecordCmd(&g, student.OpRead, "read", "Read a student record", false),
		newRecordCmd(&g, student.OpUpdate, "update", "Update a student record", true),
		newRecordCmd(&g, student.OpDelete, "delete", "Delete a student record", false),
		newConsoleCmd(&g),
	)

	return root
}

// setup loads configuration, applies flag overrides and builds the client.
func setup(cmd *cobra.Command, g *globalFlags) (*student.Client, *config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(g.envFile)
	if err != nil {
		return nil, nil, zerolog.Nop(), &student.ConfigurationError{Err: err}
	}
	if g.endpoint != "" {
		cfg.NodeURL = g.endpoint
	}
	if g.mode != "" {
		cfg.RuntimeMode = strings.ToLower(strings.TrimSpace(g.mode))
	}
	if g.timeout > 0 {
		cfg.Timeout = g.timeout
	}

	level := cfg.LogLevel
	if !g.verbose && cmd.Name() != "console" {
		level = "warn"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Environment)

	client, mode, err := student.NewFromConfig(cfg, student.WithLogger(log))
	if err != nil {
		return nil, nil, log, err
	}
	log.Debug().Str("mode", mode).Str("endpoint", cfg.NodeURL).Msg("client ready")
	return client, cfg, log, nil
}

func newRecordCmd(g *globalFlags, op student.Operation, use, short string, full bool) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, _, err := setup(cmd, g)
			if err != nil {
				return report(cmd, err)
			}
			rec, err := student.ParseRecord(op, f.id, f.name, f.age, f.grade, f.status)
			if err != nil {
				return report(cmd, err)
			}
			resp, err := client.Invoke(cmd.Context(), op, rec)
			if err != nil {
				return report(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.String())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.id, "id", "", "student ID")
	if full {
		flags.StringVar(&f.name, "name", "", "student name")
		flags.StringVar(&f.age, "age", "", "student age (whole number)")
		flags.StringVar(&f.grade, "grade", "", "student grade")
		flags.StringVar(&f.status, "status", "", "student status")
	}
	return cmd
}

func newConsoleCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Serve the tabbed web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, log, err := setup(cmd, g)
			if err != nil {
				return report(cmd, err)
			}
			if addr == "" {
				addr = cfg.ConsoleAddr
			}
			return serveConsole(cmd.Context(), addr, console.New(client, log), log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default CONSOLE_ADDR or :7860)")
	return cmd
}

func serveConsole(ctx context.Context, addr string, c *console.Console, log zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info().Str("addr", addr).Msg("console listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// report prints a one-line description of err and returns it so the process
// exits non-zero.
func report(cmd *cobra.Command, err error) error {
	var (
		verr *student.ValidationError
		terr *student.TransportError
		derr *student.DecodeError
		cerr *student.ConfigurationError
	)
	w := cmd.ErrOrStderr()
	switch {
	case errors.As(err, &verr):
		fmt.Fprintf(w, "validation error: %v\n", verr)
	case errors.As(err, &terr):
		fmt.Fprintf(w, "transport error: %v\n", terr)
		if len(terr.Body) > 0 {
			fmt.Fprintf(w, "%s\n", terr.Body)
		}
	case errors.As(err, &derr):
		fmt.Fprintf(w, "decode error: %v\n%s\n", derr, derr.Body)
	case errors.As(err, &cerr):
		fmt.Fprintf(w, "configuration error: %v\n", cerr)
	default:
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return err
}
