// Package mock implements an in-memory replacement for the student
// chaincode deployed behind a FireFly node. It is used by the mock runtime
// mode, by tests and by the sandbox server.
package mock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Ratio1/firefly_student_go/internal/devseed"
)

// Record mirrors the chaincode's student asset.
type Record struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Grade  string `json:"grade"`
	Status string `json:"status"`
}

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("mock ledger: record not found")
	// ErrExists is returned when creating a record whose id is taken.
	ErrExists = errors.New("mock ledger: record already exists")
	// ErrUnknownMethod is returned for methods other than the four student operations.
	ErrUnknownMethod = errors.New("mock ledger: unknown method")
	// ErrBadInput is returned for malformed or incomplete input.
	ErrBadInput = errors.New("mock ledger: bad input")
)

// Ledger stores records keyed by id.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
	newID   func() string
}

// Option configures the ledger.
type Option func(*Ledger)

// WithClock overrides the clock used for operation timestamps.
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithIDGenerator overrides the operation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		records: make(map[string]Record),
		now: func() time.Time {
			return time.Now().UTC()
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Seed loads records from seed entries (typically decoded via
// devseed.LoadStudentSeed), replacing existing records with the same id.
func (l *Ledger) Seed(entries []devseed.StudentSeedEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("mock ledger: seed entry missing id")
		}
		l.records[e.ID] = Record{ID: e.ID, Name: e.Name, Age: e.Age, Grade: e.Grade, Status: e.Status}
	}
	return nil
}

// Create stores rec. The id must not already exist.
func (l *Ledger) Create(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return Record{}, fmt.Errorf("%w: id is required", ErrBadInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[rec.ID]; ok {
		return Record{}, fmt.Errorf("%w: %s", ErrExists, rec.ID)
	}
	l.records[rec.ID] = rec
	return rec, nil
}

// Read returns the record stored under id.
func (l *Ledger) Read(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Update replaces an existing record.
func (l *Ledger) Update(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[rec.ID]; !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	l.records[rec.ID] = rec
	return rec, nil
}

// Delete removes the record stored under id and returns it.
func (l *Ledger) Delete(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(l.records, id)
	return rec, nil
}

// Keys lists stored ids in sorted order.
func (l *Ledger) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.records))
	for id := range l.records {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys, nil
}

// Invoke dispatches a chaincode method with its decoded input.
func (l *Ledger) Invoke(ctx context.Context, method string, input Record) (Record, error) {
	switch method {
	case "createStudent":
		return l.Create(ctx, input)
	case "readStudent":
		return l.Read(ctx, input.ID)
	case "updateStudent":
		return l.Update(ctx, input)
	case "deleteStudent":
		return l.Delete(ctx, input.ID)
	default:
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// OperationDoc is the FireFly-style document returned for a successful invocation.
type OperationDoc struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	Method  string          `json:"method"`
	Input   json.RawMessage `json:"input"`
	Output  Record          `json:"output"`
	Created time.Time       `json:"created"`
}

// Submit handles a raw {"input": {...}} request body for method the way the
// node's /invoke/{method} endpoint does and returns the HTTP status and JSON
// reply body.
func (l *Ledger) Submit(ctx context.Context, method string, body []byte) (int, []byte) {
	var envelope struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil {
		return errorReply(fmt.Errorf("%w: %v", ErrBadInput, err))
	}
	if len(envelope.Input) == 0 || bytes.Equal(envelope.Input, []byte("null")) {
		return errorReply(fmt.Errorf("%w: input is required", ErrBadInput))
	}
	var input Record
	if err := json.Unmarshal(envelope.Input, &input); err != nil {
		return errorReply(fmt.Errorf("%w: %v", ErrBadInput, err))
	}

	out, err := l.Invoke(ctx, method, input)
	if err != nil {
		return errorReply(err)
	}

	doc := OperationDoc{
		ID:      l.newID(),
		Type:    "blockchain_invoke",
		Status:  "Succeeded",
		Method:  method,
		Input:   envelope.Input,
		Output:  out,
		Created: l.now(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return errorReply(err)
	}
	return http.StatusOK, data
}

// StatusCode maps ledger errors onto the HTTP status a node would reply with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadInput), errors.Is(err, ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorReply(err error) (int, []byte) {
	data, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		data = []byte(`{"error":"internal error"}`)
	}
	return StatusCode(err), data
}
