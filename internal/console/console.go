// Package console serves a small web form for operators: one tab per
// student operation, with the node's JSON reply shown verbatim.
package console

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Ratio1/firefly_student_go/pkg/student"
)

//go:embed templates/index.html
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// RecordClient is the subset of *student.Client the console needs.
type RecordClient interface {
	Create(ctx context.Context, rec student.Record) (*student.Response, error)
	Read(ctx context.Context, id string) (*student.Response, error)
	Update(ctx context.Context, rec student.Record) (*student.Response, error)
	Delete(ctx context.Context, id string) (*student.Response, error)
}

type tab struct {
	Key        string
	Label      string
	Title      string
	Op         student.Operation
	FullRecord bool
}

var tabs = []tab{
	{Key: "create", Label: "Create Student", Title: "Create Student Record", Op: student.OpCreate, FullRecord: true},
	{Key: "read", Label: "Read Student", Title: "Read Student Record", Op: student.OpRead},
	{Key: "update", Label: "Update Student", Title: "Update Student Record", Op: student.OpUpdate, FullRecord: true},
	{Key: "delete", Label: "Delete Student", Title: "Delete Student Record", Op: student.OpDelete},
}

func findTab(key string) (tab, bool) {
	for _, t := range tabs {
		if t.Key == key {
			return t, true
		}
	}
	return tab{}, false
}

type formValues struct {
	ID, Name, Age, Grade, Status string
}

type pageData struct {
	Tabs    []tab
	Active  string
	Current *tab
	Form    formValues
	Output  string
	Error   string
}

// Console wires the form handlers to a RecordClient.
type Console struct {
	client RecordClient
	logger zerolog.Logger
}

func New(client RecordClient, logger zerolog.Logger) *Console {
	return &Console{client: client, logger: logger}
}

// Handler returns the console routes.
func (c *Console) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", c.handleIndex)
	r.Post("/{tab}", c.handleSubmit)
	return r
}

func (c *Console) handleIndex(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("tab")
	if key == "" {
		key = tabs[0].Key
	}
	t, ok := findTab(key)
	if !ok {
		http.NotFound(w, r)
		return
	}
	c.render(w, http.StatusOK, pageData{Active: t.Key, Current: &t})
}

func (c *Console) handleSubmit(w http.ResponseWriter, r *http.Request) {
	t, ok := findTab(chi.URLParam(r, "tab"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := formValues{
		ID:     strings.TrimSpace(r.PostForm.Get("id")),
		Name:   strings.TrimSpace(r.PostForm.Get("name")),
		Age:    strings.TrimSpace(r.PostForm.Get("age")),
		Grade:  strings.TrimSpace(r.PostForm.Get("grade")),
		Status: strings.TrimSpace(r.PostForm.Get("status")),
	}
	data := pageData{Active: t.Key, Current: &t, Form: form}

	resp, err := c.submit(r.Context(), t, form)
	if err != nil {
		c.logger.Warn().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("tab", t.Key).
			Err(err).
			Msg("operation failed")
		data.Error = describe(err)
		c.render(w, statusFor(err), data)
		return
	}
	data.Output = resp.String()
	c.render(w, http.StatusOK, data)
}

func (c *Console) submit(ctx context.Context, t tab, form formValues) (*student.Response, error) {
	switch t.Op {
	case student.OpRead:
		return c.client.Read(ctx, form.ID)
	case student.OpDelete:
		return c.client.Delete(ctx, form.ID)
	}

	rec, err := student.ParseRecord(t.Op, form.ID, form.Name, form.Age, form.Grade, form.Status)
	if err != nil {
		return nil, err
	}
	if t.Op == student.OpCreate {
		return c.client.Create(ctx, rec)
	}
	return c.client.Update(ctx, rec)
}

func describe(err error) string {
	var (
		verr *student.ValidationError
		terr *student.TransportError
		derr *student.DecodeError
		cerr *student.ConfigurationError
	)
	switch {
	case errors.As(err, &verr):
		return "Invalid input: " + verr.Error()
	case errors.As(err, &terr):
		if terr.StatusCode != 0 && len(terr.Body) > 0 {
			return fmt.Sprintf("Node rejected the request (status %d): %s", terr.StatusCode, strings.TrimSpace(string(terr.Body)))
		}
		return "Could not reach the node: " + terr.Error()
	case errors.As(err, &derr):
		return fmt.Sprintf("Node replied with invalid JSON: %s", string(derr.Body))
	case errors.As(err, &cerr):
		return "Client misconfigured: " + cerr.Error()
	default:
		return err.Error()
	}
}

func statusFor(err error) int {
	var verr *student.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (c *Console) render(w http.ResponseWriter, status int, data pageData) {
	data.Tabs = tabs
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		c.logger.Error().Err(err).Msg("render console page")
	}
}
