package student_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ratio1/firefly_student_go/pkg/student"
	"github.com/Ratio1/firefly_student_go/pkg/student/mock"
)

type capturedRequest struct {
	Method      string
	Path        string
	ContentType string
	RequestID   string
	Body        []byte
}

// recorder is a test node that records requests and replies with a fixed
// status and body.
type recorder struct {
	mu       sync.Mutex
	requests []capturedRequest
	calls    atomic.Int32
	status   int
	body     string
}

func (rc *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc.calls.Add(1)
	data, _ := io.ReadAll(r.Body)
	rc.mu.Lock()
	rc.requests = append(rc.requests, capturedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		RequestID:   r.Header.Get("X-Request-ID"),
		Body:        data,
	})
	rc.mu.Unlock()

	status := rc.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, rc.body)
}

func (rc *recorder) last(t *testing.T) capturedRequest {
	t.Helper()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.requests) == 0 {
		t.Fatalf("no request recorded")
	}
	return rc.requests[len(rc.requests)-1]
}

func newRecorder(t *testing.T, status int, body string) (*recorder, *student.Client) {
	t.Helper()
	rc := &recorder{status: status, body: body}
	srv := httptest.NewServer(rc)
	t.Cleanup(srv.Close)

	client, err := student.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rc, client
}

var ada = student.Record{ID: "s1", Name: "Ada", Age: 20, Grade: "A", Status: "active"}

func TestClientRequestBodies(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{"result":"ok"}`)
	ctx := context.Background()

	full := map[string]any{
		"input": map[string]any{
			"id": "s1", "name": "Ada", "age": float64(20), "grade": "A", "status": "active",
		},
	}
	idOnly := map[string]any{"input": map[string]any{"id": "s1"}}

	tests := []struct {
		name string
		call func() (*student.Response, error)
		path string
		want map[string]any
	}{
		{"create", func() (*student.Response, error) { return client.Create(ctx, ada) }, "/invoke/createStudent", full},
		{"read", func() (*student.Response, error) { return client.Read(ctx, "s1") }, "/invoke/readStudent", idOnly},
		{"update", func() (*student.Response, error) { return client.Update(ctx, ada) }, "/invoke/updateStudent", full},
		{"delete", func() (*student.Response, error) { return client.Delete(ctx, "s1") }, "/invoke/deleteStudent", idOnly},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.call(); err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			req := rc.last(t)
			if req.Method != http.MethodPost {
				t.Fatalf("expected POST, got %s", req.Method)
			}
			if req.Path != tc.path {
				t.Fatalf("expected path %s, got %s", tc.path, req.Path)
			}
			if req.ContentType != "application/json" {
				t.Fatalf("unexpected content type %q", req.ContentType)
			}
			var got map[string]any
			if err := json.Unmarshal(req.Body, &got); err != nil {
				t.Fatalf("decode request body %q: %v", req.Body, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("request body mismatch:\n got  %#v\n want %#v", got, tc.want)
			}
		})
	}
}

func TestClientSendsAgeAsNumber(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{}`)
	if _, err := client.Create(context.Background(), ada); err != nil {
		t.Fatalf("Create: %v", err)
	}
	body := string(rc.last(t).Body)
	if !strings.Contains(body, `"age":20`) {
		t.Fatalf("expected numeric age in %s", body)
	}
}

func TestClientAttachesRequestID(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{}`)
	resp, err := client.Read(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	req := rc.last(t)
	if req.RequestID == "" || req.RequestID != resp.RequestID {
		t.Fatalf("request id mismatch: header=%q response=%q", req.RequestID, resp.RequestID)
	}
}

func TestClientValidationSkipsNetwork(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{}`)
	ctx := context.Background()

	without := func(mutate func(*student.Record)) student.Record {
		rec := ada
		mutate(&rec)
		return rec
	}

	tests := []struct {
		name    string
		call    func() (*student.Response, error)
		missing []string
	}{
		{"read empty id", func() (*student.Response, error) { return client.Read(ctx, "") }, []string{"id"}},
		{"delete empty id", func() (*student.Response, error) { return client.Delete(ctx, "") }, []string{"id"}},
		{"read blank id", func() (*student.Response, error) { return client.Read(ctx, "   ") }, []string{"id"}},
		{"create no id", func() (*student.Response, error) {
			return client.Create(ctx, without(func(r *student.Record) { r.ID = "" }))
		}, []string{"id"}},
		{"create no name", func() (*student.Response, error) {
			return client.Create(ctx, without(func(r *student.Record) { r.Name = "" }))
		}, []string{"name"}},
		{"create no age", func() (*student.Response, error) {
			return client.Create(ctx, without(func(r *student.Record) { r.Age = 0 }))
		}, []string{"age"}},
		{"update no grade", func() (*student.Response, error) {
			return client.Update(ctx, without(func(r *student.Record) { r.Grade = "" }))
		}, []string{"grade"}},
		{"update no status", func() (*student.Response, error) {
			return client.Update(ctx, without(func(r *student.Record) { r.Status = "" }))
		}, []string{"status"}},
		{"update empty", func() (*student.Response, error) {
			return client.Update(ctx, student.Record{})
		}, []string{"id", "name", "age", "grade", "status"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, err := tc.call()
			if resp != nil {
				t.Fatalf("expected nil response, got %#v", resp)
			}
			var verr *student.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T %v", err, err)
			}
			if !reflect.DeepEqual(verr.Fields, tc.missing) {
				t.Fatalf("missing fields mismatch: got %v want %v", verr.Fields, tc.missing)
			}
		})
	}

	if n := rc.calls.Load(); n != 0 {
		t.Fatalf("expected zero network calls, got %d", n)
	}
}

func TestClientUnknownOperation(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{}`)
	_, err := client.Invoke(context.Background(), student.Operation("dropTable"), ada)
	var verr *student.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if rc.calls.Load() != 0 {
		t.Fatalf("expected no request for unknown operation")
	}
}

func TestClientPassThroughResult(t *testing.T) {
	_, client := newRecorder(t, http.StatusOK, `{"result":"ok"}`)
	resp, err := client.Read(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(resp.Body) != `{"result":"ok"}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	value, err := resp.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if !reflect.DeepEqual(value, map[string]any{"result": "ok"}) {
		t.Fatalf("unexpected value %#v", value)
	}
	if resp.StatusCode != http.StatusOK || resp.Operation != student.OpRead {
		t.Fatalf("unexpected response metadata %#v", resp)
	}
}

func TestClientKeepsBodyBytes(t *testing.T) {
	body := "{\n  \"result\": \"ok\"\n}\n"
	_, client := newRecorder(t, http.StatusOK, body)
	resp, err := client.Read(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(resp.Body) != body {
		t.Fatalf("expected body unchanged, got %q", resp.Body)
	}
}

func TestClientInvalidUTF8IsDecodeError(t *testing.T) {
	_, client := newRecorder(t, http.StatusOK, "\"\xff\"")
	_, err := client.Read(context.Background(), "s1")

	var derr *student.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %T %v", err, err)
	}
	if string(derr.Body) != "\"\xff\"" {
		t.Fatalf("expected raw body to be kept, got %q", derr.Body)
	}
}

func TestClientServerErrorIsTransportError(t *testing.T) {
	_, client := newRecorder(t, http.StatusInternalServerError, `{"error":"chaincode panic"}`)
	_, err := client.Create(context.Background(), ada)

	var terr *student.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if terr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", terr.StatusCode)
	}
	if !strings.Contains(string(terr.Body), "chaincode panic") {
		t.Fatalf("expected error body to be kept, got %q", terr.Body)
	}
	if terr.Operation != student.OpCreate {
		t.Fatalf("unexpected operation %q", terr.Operation)
	}
}

func TestClientInvalidJSONIsDecodeError(t *testing.T) {
	_, client := newRecorder(t, http.StatusOK, `not json`)
	_, err := client.Read(context.Background(), "s1")

	var derr *student.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %T %v", err, err)
	}
	if string(derr.Body) != "not json" {
		t.Fatalf("expected raw body to be kept, got %q", derr.Body)
	}
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := student.New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Read(context.Background(), "s1")
	var terr *student.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if terr.StatusCode != 0 {
		t.Fatalf("expected status 0 for network failure, got %d", terr.StatusCode)
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := student.New(srv.URL, student.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Read(context.Background(), "s1")
	var terr *student.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	if !terr.Timeout {
		t.Fatalf("expected timeout flag, got %#v", terr)
	}
}

func TestClientEchoEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Input json.RawMessage `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload.Input)
	}))
	defer srv.Close()

	client, err := student.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := client.Create(context.Background(), ada)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var got student.Record
	if err := resp.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != "s1" || got.Name != "Ada" {
		t.Fatalf("unexpected echo %#v", got)
	}
}

func TestClientKeepsBasePath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client, err := student.New(srv.URL + "/api/v1/namespaces/default/apis/students/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if path != "/api/v1/namespaces/default/apis/students/invoke/deleteStudent" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	for _, raw := range []string{"", "   ", "://not-a-url", "ftp://node", "http://"} {
		_, err := student.New(raw)
		var cerr *student.ConfigurationError
		if !errors.As(err, &cerr) {
			t.Fatalf("New(%q): expected ConfigurationError, got %v", raw, err)
		}
	}
}

func TestClientConcurrentUse(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{"result":"ok"}`)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Read(ctx, "s1"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Read: %v", err)
	}
	if n := rc.calls.Load(); n != 16 {
		t.Fatalf("expected 16 calls, got %d", n)
	}
}

func TestClientWithMockBackend(t *testing.T) {
	client := student.NewWithBackend(student.NewMockBackend(mock.New()))
	ctx := context.Background()

	if _, err := client.Create(ctx, ada); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := client.Create(ctx, ada)
	var terr *student.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 TransportError for duplicate create, got %v", err)
	}

	resp, err := client.Read(ctx, "s1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	out, err := resp.Output()
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	var rec student.Record
	if err := json.Unmarshal(out, &rec); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if rec != ada {
		t.Fatalf("unexpected record %#v", rec)
	}

	if _, err := client.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = client.Read(ctx, "s1")
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 TransportError after delete, got %v", err)
	}
}

func TestClientNegativeAgeIsNotMissing(t *testing.T) {
	rc, client := newRecorder(t, http.StatusOK, `{}`)
	rec := ada
	rec.Age = -3
	_, err := client.Create(context.Background(), rec)

	var verr *student.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.Fields, []string{"age"}) {
		t.Fatalf("unexpected fields %v", verr.Fields)
	}
	if !strings.Contains(verr.Error(), "age must be positive") || strings.Contains(verr.Error(), "missing") {
		t.Fatalf("unexpected message %q", verr.Error())
	}

	rec.Name = ""
	_, err = client.Update(context.Background(), rec)
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "age must be positive") || !strings.Contains(verr.Error(), "missing required fields: name") {
		t.Fatalf("unexpected message %q", verr.Error())
	}
	if rc.calls.Load() != 0 {
		t.Fatalf("expected no request for invalid input")
	}
}

func TestClientLogsSuccessAtDebug(t *testing.T) {
	rc := &recorder{body: `{"result":"ok"}`}
	srv := httptest.NewServer(rc)
	defer srv.Close()

	var info, debug bytes.Buffer
	quiet, err := student.New(srv.URL, student.WithLogger(zerolog.New(&info).Level(zerolog.InfoLevel)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	verbose, err := student.New(srv.URL, student.WithLogger(zerolog.New(&debug).Level(zerolog.DebugLevel)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := quiet.Read(context.Background(), "s1"); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if info.Len() != 0 {
		t.Fatalf("expected no info-level output for a successful call, got %s", info.String())
	}
	if _, err := verbose.Read(context.Background(), "s1"); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(debug.String(), "invocation completed") {
		t.Fatalf("expected debug trace, got %s", debug.String())
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := student.ParseRecord(student.OpCreate, "s1", "Ada", " 20 ", "A", "active")
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec != ada {
		t.Fatalf("unexpected record %#v", rec)
	}

	rec, err = student.ParseRecord(student.OpCreate, "s1", "Ada", "", "A", "active")
	if err != nil {
		t.Fatalf("ParseRecord with empty age: %v", err)
	}
	if rec.Age != 0 {
		t.Fatalf("expected zero age, got %d", rec.Age)
	}

	_, err = student.ParseRecord(student.OpUpdate, "s1", "Ada", "20.5", "A", "active")
	var verr *student.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Operation != student.OpUpdate || !reflect.DeepEqual(verr.Fields, []string{"age"}) {
		t.Fatalf("unexpected error %#v", verr)
	}
	if !strings.HasPrefix(verr.Error(), "student: updateStudent: age must be a whole number") {
		t.Fatalf("unexpected message %q", verr.Error())
	}
}
