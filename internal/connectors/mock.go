package connectors

import (
	"context"
	"net/http"
	"time"
)

// SimulatedTransport отвечает успехом без реального вызова (режим dry run).
// Нужен, чтобы прогнать нормализацию, квоты и отчеты на боевых выгрузках.
type SimulatedTransport struct {
	Status  int
	Latency time.Duration
}

func (s *SimulatedTransport) Send(ctx context.Context, req Request) (Response, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return Response{}, &TransportError{Method: req.Method, URL: req.URL, Cause: ctx.Err()}
		}
	}

	status := s.Status
	if status == 0 {
		status = http.StatusOK
	}
	return Response{StatusCode: status, Body: []byte(`{"status": "simulated", "details": "dry run, no request sent"}`)}, nil
}
