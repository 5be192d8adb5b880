package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ratio1/firefly_student_go/internal/devseed"
	"github.com/Ratio1/firefly_student_go/internal/logger"
	"github.com/Ratio1/firefly_student_go/internal/sandbox"
	"github.com/Ratio1/firefly_student_go/pkg/student/mock"
)

type options struct {
	addr        string
	seed        string
	latency     time.Duration
	fail        string
	rps         float64
	burst       int
	logLevel    string
	environment string
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:   "firefly-sandbox",
		Short: "Local stand-in for a FireFly node running the student chaincode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":5000", "listen address")
	flags.StringVar(&opts.seed, "seed", "", "path to a YAML/JSON seed of student records")
	flags.DurationVar(&opts.latency, "latency", 0, "artificial latency to inject per request")
	flags.StringVar(&opts.fail, "fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flags.Float64Var(&opts.rps, "rps", 0, "requests per second accepted before replying 429 (0 disables)")
	flags.IntVar(&opts.burst, "burst", 5, "rate limiter burst size")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flags.StringVar(&opts.environment, "env", "dev", "environment (dev uses console logs)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	log := logger.New(opts.logLevel, opts.environment)

	ledger := mock.New()
	if opts.seed != "" {
		entries, err := devseed.LoadStudentSeed(opts.seed)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := ledger.Seed(entries); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		log.Info().Int("records", len(entries)).Str("path", opts.seed).Msg("seeded ledger")
	}

	failCfg, err := sandbox.ParseFailConfig(opts.fail)
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	srv := sandbox.New(ledger, log, sandbox.Options{
		Latency: opts.latency,
		Fail:    failCfg,
		RPS:     opts.rps,
		Burst:   opts.burst,
	})
	server := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	host := opts.addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	log.Info().Str("addr", opts.addr).Msg("firefly-sandbox listening")
	fmt.Println()
	fmt.Println("export FIREFLY_RUNTIME_MODE=http")
	fmt.Printf("export FIREFLY_NODE_URL=http://%s\n", host)
	fmt.Println()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("firefly-sandbox stopped")
	return nil
}
