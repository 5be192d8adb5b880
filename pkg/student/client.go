package student

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ratio1/firefly_student_go/internal/fireflyapi"
	"github.com/Ratio1/firefly_student_go/internal/httpx"
)

// Client submits student operations to a FireFly node. It holds no mutable
// state and is safe for concurrent use.
type Client struct {
	backend Backend
	logger  zerolog.Logger
}

// Reply is the raw outcome of a single invocation as seen by a Backend.
type Reply struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// Backend carries an encoded {"input": ...} payload to the ledger. Errors
// returned by a backend are reported to callers as *TransportError.
type Backend interface {
	Invoke(ctx context.Context, op Operation, payload []byte) (*Reply, error)
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	httpOpts []httpx.Option
	logger   zerolog.Logger
}

// WithTimeout bounds each request. The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.httpOpts = append(s.httpOpts, httpx.WithTimeout(d))
	}
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(s *settings) {
		s.httpOpts = append(s.httpOpts, httpx.WithHTTPClient(h))
	}
}

// WithHeaders adds default headers to every request.
func WithHeaders(h http.Header) Option {
	return func(s *settings) {
		s.httpOpts = append(s.httpOpts, httpx.WithHeaders(h))
	}
}

// WithLogger sets the logger used for invocation tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = l
		s.httpOpts = append(s.httpOpts, httpx.WithLogger(l))
	}
}

func resolve(opts []Option) settings {
	s := settings{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// New constructs a Client bound to the node's endpoint base URL, for example
// http://localhost:5000/api/v1/namespaces/default/apis/students.
func New(baseURL string, opts ...Option) (*Client, error) {
	s := resolve(opts)
	cl, err := httpx.NewClient(baseURL, s.httpOpts...)
	if err != nil {
		return nil, &ConfigurationError{Setting: "endpoint", Err: err}
	}
	return &Client{backend: &httpBackend{client: cl}, logger: s.logger}, nil
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend, opts ...Option) *Client {
	s := resolve(opts)
	return &Client{backend: b, logger: s.logger}
}

// Create submits a new record.
func (c *Client) Create(ctx context.Context, rec Record) (*Response, error) {
	return c.Invoke(ctx, OpCreate, rec)
}

// Read fetches the record stored under id.
func (c *Client) Read(ctx context.Context, id string) (*Response, error) {
	return c.Invoke(ctx, OpRead, Record{ID: id})
}

// Update replaces the record stored under rec.ID.
func (c *Client) Update(ctx context.Context, rec Record) (*Response, error) {
	return c.Invoke(ctx, OpUpdate, rec)
}

// Delete removes the record stored under id.
func (c *Client) Delete(ctx context.Context, id string) (*Response, error) {
	return c.Invoke(ctx, OpDelete, Record{ID: id})
}

// Invoke validates the fields op requires, sends exactly those fields as
// {"input": {...}} and returns the node's JSON reply unchanged. Exactly one
// request is issued per call and none when validation fails.
func (c *Client) Invoke(ctx context.Context, op Operation, rec Record) (*Response, error) {
	if c == nil || c.backend == nil {
		return nil, &ConfigurationError{Err: errors.New("client is not initialised")}
	}
	if err := checkInput(op, rec); err != nil {
		c.logger.Debug().Str("operation", string(op)).Err(err).Msg("rejected invalid input")
		return nil, err
	}

	payload, err := encodeInput(buildInput(op, rec))
	if err != nil {
		return nil, &ValidationError{Operation: op, Reason: "encode input: " + err.Error(), Err: err}
	}

	start := time.Now()
	reply, err := c.backend.Invoke(ctx, op, payload)
	if err != nil {
		terr := transportError(op, err)
		c.logger.Warn().
			Str("operation", string(op)).
			Str("id", rec.ID).
			Int("status", terr.StatusCode).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("invocation failed")
		return nil, terr
	}
	if reply == nil {
		return nil, &TransportError{Operation: op, Err: errors.New("backend returned no reply")}
	}
	if reply.StatusCode != 0 && (reply.StatusCode < 200 || reply.StatusCode > 299) {
		return nil, &TransportError{
			Operation:  op,
			StatusCode: reply.StatusCode,
			Body:       reply.Body,
			Err:        fmt.Errorf("unexpected status %d", reply.StatusCode),
		}
	}

	body, err := fireflyapi.Parse(reply.Body)
	if err != nil {
		c.logger.Warn().Str("operation", string(op)).Str("request_id", reply.RequestID).Err(err).Msg("invalid JSON reply")
		return nil, &DecodeError{Operation: op, StatusCode: reply.StatusCode, Body: reply.Body, Err: err}
	}

	c.logger.Debug().
		Str("operation", string(op)).
		Str("id", rec.ID).
		Str("request_id", reply.RequestID).
		Int("status", reply.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("invocation completed")

	return &Response{
		Operation:  op,
		StatusCode: reply.StatusCode,
		RequestID:  reply.RequestID,
		Body:       body,
	}, nil
}

func transportError(op Operation, err error) *TransportError {
	var terr *TransportError
	if errors.As(err, &terr) {
		if terr.Operation == "" {
			terr.Operation = op
		}
		return terr
	}
	out := &TransportError{Operation: op, Err: err}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		out.StatusCode = httpErr.StatusCode
		out.Body = httpErr.Body
		return out
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		out.Timeout = true
	}
	return out
}

var encodeInput = httpx.MarshalJSON

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) Invoke(ctx context.Context, op Operation, payload []byte) (*Reply, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("student: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   op.Path(),
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return nil, err
	}
	return &Reply{StatusCode: resp.StatusCode, Body: resp.Body, RequestID: resp.RequestID}, nil
}
