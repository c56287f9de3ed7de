package connectors

import "fmt"

// TransportError — запрос не получил HTTP-ответа (сеть, таймаут, битый URL).
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
