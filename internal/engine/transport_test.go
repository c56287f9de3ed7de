package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
)

// headerTransport запоминает заголовки последнего вызова
type headerTransport struct {
	got http.Header
}

func (h *headerTransport) Send(_ context.Context, req connectors.Request) (connectors.Response, error) {
	h.got = req.Header
	return connectors.Response{StatusCode: http.StatusOK}, nil
}

func TestTracingTransport_SetsTraceID(t *testing.T) {
	next := &headerTransport{}
	tr := NewTracingTransport(next, zap.NewNop())
	orig := http.Header{"Content-Type": []string{"application/json"}}

	_, err := tr.Send(context.Background(), connectors.Request{Method: http.MethodPost, URL: "/users", Header: orig})
	require.NoError(t, err)

	_, err = uuid.Parse(next.got.Get(TraceHeader))
	assert.NoError(t, err)
	assert.Equal(t, "application/json", next.got.Get("Content-Type"))
	assert.Empty(t, orig.Get(TraceHeader))
}

func TestTracingTransport_KeepsCallerTraceID(t *testing.T) {
	next := &headerTransport{}
	tr := NewTracingTransport(next, zap.NewNop())

	h := http.Header{}
	h.Set(TraceHeader, "abc")
	_, err := tr.Send(context.Background(), connectors.Request{Method: http.MethodGet, URL: "/users/1", Header: h})
	require.NoError(t, err)
	assert.Equal(t, "abc", next.got.Get(TraceHeader))
	assert.Len(t, next.got, 1, "trace id must not be duplicated under another key")
}

func TestTracingTransport_HeaderLiteral(t *testing.T) {
	next := &headerTransport{}
	tr := NewTracingTransport(next, zap.NewNop())

	_, err := tr.Send(context.Background(), connectors.Request{
		Method: http.MethodGet,
		URL:    "/users/1",
		Header: http.Header{TraceHeader: []string{"abc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, next.got.Values(TraceHeader))
	assert.Len(t, next.got, 1)
}
