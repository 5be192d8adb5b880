package fireflyapi

import (
	"bytes"
	"errors"
	"strconv"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

var (
	// ErrEmptyBody is returned by Parse when the node replied without a body.
	ErrEmptyBody = errors.New("fireflyapi: empty response body")
	// ErrInvalidUTF8 is returned by Parse for bodies that are not UTF-8 text.
	ErrInvalidUTF8 = errors.New("fireflyapi: response body is not valid UTF-8")
)

// Parse validates that body is a single UTF-8 JSON document and returns a
// copy of the exact bytes received. The document itself is not interpreted.
func Parse(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyBody
	}
	if !utf8.Valid(trimmed) {
		return nil, ErrInvalidUTF8
	}
	var doc json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return append(json.RawMessage(nil), body...), nil
}

// ExtractField unwraps the JSON payload stored under field in an object
// response (FireFly operations carry chaincode results under "output"). If
// the body is not an object or has no such field, the original body is
// returned. When the field holds a JSON-encoded string the inner document is
// decoded so callers receive the payload itself.
func ExtractField(body []byte, field string) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return append([]byte(nil), trimmed...), nil
	}
	value, ok := envelope[field]
	if !ok || value == nil {
		return append([]byte(nil), trimmed...), nil
	}

	var asString string
	if err := json.Unmarshal(value, &asString); err == nil {
		decoded := asString
		for i := 0; i < 4; i++ {
			unquoted, err := strconv.Unquote(decoded)
			if err != nil {
				break
			}
			decoded = unquoted
		}
		var inner json.RawMessage
		if err := json.Unmarshal([]byte(decoded), &inner); err == nil {
			return append([]byte(nil), inner...), nil
		}
	}

	return append([]byte(nil), value...), nil
}

// Indent pretty-prints a JSON document for display. Invalid input is
// returned unchanged.
func Indent(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
