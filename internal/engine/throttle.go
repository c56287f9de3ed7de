package engine

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/xela07ax/obt-migrator/internal/connectors"
)

// ThrottledTransport ограничивает частоту запросов к API поверх лимита параллелизма.
// Повторов и предохранителя здесь нет: каждая запись отправляется ровно один раз,
// а отказ одной записи не должен влиять на соседние.
type ThrottledTransport struct {
	next    connectors.Transport
	limiter *rate.Limiter
}

// NewThrottledTransport возвращает next без обертки, если perSecond <= 0.
func NewThrottledTransport(next connectors.Transport, perSecond float64, burst int) connectors.Transport {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *ThrottledTransport) Send(ctx context.Context, req connectors.Request) (connectors.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return connectors.Response{}, &connectors.TransportError{
			Method: req.Method,
			URL:    req.URL,
			Cause:  fmt.Errorf("rate limit wait: %w", err),
		}
	}
	return t.next.Send(ctx, req)
}
