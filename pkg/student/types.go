package student

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/Ratio1/firefly_student_go/internal/fireflyapi"
)

// Record is the flat student entity exchanged with the remote ledger.
type Record struct {
	ID     string `json:"id" validate:"notblank"`
	Name   string `json:"name" validate:"notblank"`
	Age    int    `json:"age" validate:"gt=0"`
	Grade  string `json:"grade" validate:"notblank"`
	Status string `json:"status" validate:"notblank"`
}

// Operation names a chaincode method exposed by the node under /invoke.
type Operation string

const (
	OpCreate Operation = "createStudent"
	OpRead   Operation = "readStudent"
	OpUpdate Operation = "updateStudent"
	OpDelete Operation = "deleteStudent"
)

// Operations lists the supported operations in display order.
var Operations = []Operation{OpCreate, OpRead, OpUpdate, OpDelete}

func (o Operation) String() string {
	return string(o)
}

// Path returns the request path relative to the endpoint base.
func (o Operation) Path() string {
	return "invoke/" + string(o)
}

// Response is the node's reply to a single invocation. Body holds the JSON
// document exactly as received.
type Response struct {
	Operation  Operation
	StatusCode int
	RequestID  string
	Body       json.RawMessage
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if r == nil {
		return fmt.Errorf("student: nil response")
	}
	return json.Unmarshal(r.Body, out)
}

// Value returns the body decoded into generic JSON values.
func (r *Response) Value() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Output returns the chaincode output carried by a FireFly operation
// document, or the whole body when there is no "output" field.
func (r *Response) Output() (json.RawMessage, error) {
	if r == nil {
		return nil, fmt.Errorf("student: nil response")
	}
	out, err := fireflyapi.ExtractField(r.Body, "output")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// String renders the body as indented JSON.
func (r *Response) String() string {
	if r == nil {
		return "null"
	}
	return fireflyapi.Indent(r.Body)
}
