package connectors

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request — один исходящий вызов к API провиженинга.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response интересен диспетчеру только кодом; тело идет в сообщение об ошибке.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport выполняет ровно один запрос. Ошибка возвращается только когда
// ответа нет вообще; любой HTTP-статус — это Response.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

type HTTPAdapter struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPAdapter создает транспорт поверх net/http.
// timeout ограничивает каждый вызов отдельно; 0 — без таймаута.
func NewHTTPAdapter(client *http.Client, timeout time.Duration) *HTTPAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAdapter{client: client, timeout: timeout}
}

func (a *HTTPAdapter) Send(ctx context.Context, req Request) (Response, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, &TransportError{Method: req.Method, URL: req.URL, Cause: err}
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, &TransportError{Method: req.Method, URL: req.URL, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransportError{Method: req.Method, URL: req.URL, Cause: err}
	}

	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}
