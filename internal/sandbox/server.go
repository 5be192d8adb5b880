// Package sandbox serves the mock ledger over the same /invoke/{method} HTTP
// surface as a FireFly node so that clients can be exercised locally.
package sandbox

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Ratio1/firefly_student_go/pkg/student/mock"
)

// maxBodyBytes caps request bodies accepted by /invoke.
const maxBodyBytes = 1 << 20

// FailConfig injects failures into a fraction of requests.
type FailConfig struct {
	Rate float64
	Code int
}

// Options tune the sandbox behaviour.
type Options struct {
	Latency time.Duration
	Fail    FailConfig
	// RPS limits accepted requests per second; zero disables limiting.
	RPS   float64
	Burst int
	// Rand drives failure injection; nil uses a time-seeded source.
	Rand *rand.Rand
}

// Server exposes a mock.Ledger over HTTP.
type Server struct {
	ledger  *mock.Ledger
	logger  zerolog.Logger
	opts    Options
	limiter *rate.Limiter

	randMu sync.Mutex
	rand   *rand.Rand
}

func New(ledger *mock.Ledger, logger zerolog.Logger, opts Options) *Server {
	if ledger == nil {
		ledger = mock.New()
	}
	s := &Server{
		ledger: ledger,
		logger: logger,
		opts:   opts,
		rand:   opts.Rand,
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return s
}

// Handler returns the sandbox routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogging)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.inject)
		r.Post("/invoke/{method}", s.handleInvoke)
		r.Get("/status", s.handleStatus)
	})
	return r
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	status, reply := s.ledger.Submit(r.Context(), method, body)
	s.logger.Debug().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", method).
		Int("status", status).
		Msg("invoke")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(reply)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys, err := s.ledger.Keys(r.Context())
	if err != nil {
		writeJSON(w, mock.StatusCode(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		if s.shouldFail() {
			status := s.opts.Fail.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			writeJSON(w, status, map[string]string{"error": "failure injected"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) shouldFail() bool {
	if s.opts.Fail.Rate <= 0 {
		return false
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64() < s.opts.Fail.Rate
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.logger.Info()
		switch {
		case ww.Status() >= 500:
			event = s.logger.Error()
		case ww.Status() >= 400:
			event = s.logger.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("client_request_id", r.Header.Get("X-Request-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>".
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	parts := strings.Split(raw, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return FailConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return FailConfig{}, err
			}
			if val < 0 || val > 1 {
				return FailConfig{}, fmt.Errorf("fail rate must be within [0,1], got %v", val)
			}
			cfg.Rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return FailConfig{}, err
			}
			if val < 100 || val > 599 {
				return FailConfig{}, fmt.Errorf("fail code must be an HTTP status, got %d", val)
			}
			cfg.Code = val
		default:
			return FailConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
