package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
)

// TraceHeader: по нему вызов можно найти в логах API.
// Значение в канонической форме, иначе Header.Get его не найдет.
const TraceHeader = "X-Trace-Id"

// TracingTransport проставляет Trace-ID каждому исходящему вызову и пишет его в debug-лог.
type TracingTransport struct {
	next   connectors.Transport
	logger *zap.Logger
}

func NewTracingTransport(next connectors.Transport, logger *zap.Logger) *TracingTransport {
	return &TracingTransport{next: next, logger: logger.Named("trace")}
}

func (t *TracingTransport) Send(ctx context.Context, req connectors.Request) (connectors.Response, error) {
	// Заголовки вызывающего не трогаем
	h := req.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	traceID := h.Get(TraceHeader)
	// Если его нет, генерируем новый
	if traceID == "" {
		traceID = uuid.New().String()
		h.Set(TraceHeader, traceID)
	}
	req.Header = h

	resp, err := t.next.Send(ctx, req)
	if err != nil {
		t.logger.Debug("call failed",
			zap.String("trace_id", traceID),
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err))
		return resp, err
	}

	t.logger.Debug("call completed",
		zap.String("trace_id", traceID),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}
