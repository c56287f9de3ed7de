package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/obt-migrator/internal/connectors"
)

// TokenProvider: источник bearer токена для исходящих вызовов.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// BearerTransport добавляет Authorization к каждому вызову API.
type BearerTransport struct {
	next   connectors.Transport
	tokens TokenProvider
}

func NewBearerTransport(next connectors.Transport, tokens TokenProvider) *BearerTransport {
	return &BearerTransport{next: next, tokens: tokens}
}

func (t *BearerTransport) Send(ctx context.Context, req connectors.Request) (connectors.Response, error) {
	token, err := t.tokens.Token(ctx)
	if err != nil {
		return connectors.Response{}, &connectors.TransportError{Method: req.Method, URL: req.URL, Cause: err}
	}

	// Заголовки вызывающего не трогаем
	h := req.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Authorization", "Bearer "+token)
	req.Header = h

	return t.next.Send(ctx, req)
}
