package student

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Ratio1/firefly_student_go/internal/httpx"
	"github.com/Ratio1/firefly_student_go/pkg/student/mock"
)

// NewMockBackend serves invocations from an in-memory ledger. Replies have
// the same shape and status codes as the sandbox node.
func NewMockBackend(ledger *mock.Ledger) Backend {
	if ledger == nil {
		ledger = mock.New()
	}
	return &mockBackend{ledger: ledger}
}

type mockBackend struct {
	ledger *mock.Ledger
}

func (b *mockBackend) Invoke(ctx context.Context, op Operation, payload []byte) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status, body := b.ledger.Submit(ctx, string(op), payload)
	if status < 200 || status > 299 {
		return nil, &httpx.HTTPError{
			StatusCode: status,
			Body:       body,
			JSON:       decodeErrorBody(body),
		}
	}
	return &Reply{StatusCode: status, Body: body, RequestID: uuid.NewString()}, nil
}

func decodeErrorBody(body []byte) any {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}
