package httpx

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// HTTPError represents a non-2xx HTTP response returned by the remote service.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	JSON       any
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("http error: status=%d message=%s", e.StatusCode, msg)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Message returns the "error" or "message" field of a JSON error body, if any.
func (e *HTTPError) Message() string {
	if e == nil {
		return ""
	}
	obj, ok := e.JSON.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// decodeJSONBody parses the body bytes into a generic JSON payload.
func decodeJSONBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}
