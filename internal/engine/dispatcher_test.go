package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/quota"
)

// fakeTransport отвечает по URL и считает одновременные вызовы
type fakeTransport struct {
	mu       sync.Mutex
	bodies   map[string][]byte
	respond  func(req connectors.Request) (connectors.Response, error)
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTransport) Send(ctx context.Context, req connectors.Request) (connectors.Response, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	if f.bodies == nil {
		f.bodies = make(map[string][]byte)
	}
	f.bodies[req.URL] = req.Body
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.respond == nil {
		return connectors.Response{StatusCode: http.StatusOK}, nil
	}
	return f.respond(req)
}

func (f *fakeTransport) body(url string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[url]
}

func postOp(name string) Operation {
	return Operation{
		Name:           name,
		Accept:         []int{http.StatusOK, http.StatusCreated},
		SuccessMessage: "created",
		Build: func(rec domain.Record) (connectors.Request, error) {
			body, err := json.Marshal(rec.Payload(domain.UserSchema))
			if err != nil {
				return connectors.Request{}, err
			}
			return connectors.Request{Method: http.MethodPost, URL: "/users/" + rec.ID, Body: body}, nil
		},
	}
}

func records(ids ...string) []domain.Record {
	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Record{ID: id, Name: "user-" + id})
	}
	return out
}

func byID(outcomes []domain.Outcome) map[string]domain.Outcome {
	m := make(map[string]domain.Outcome, len(outcomes))
	for _, o := range outcomes {
		m[o.RecordID] = o
	}
	return m
}

func TestDispatcher_TransportErrorStaysWithItsRecord(t *testing.T) {
	tr := &fakeTransport{respond: func(req connectors.Request) (connectors.Response, error) {
		switch req.URL {
		case "/users/3":
			return connectors.Response{}, &connectors.TransportError{Method: req.Method, URL: req.URL, Cause: errors.New("connection reset")}
		case "/users/4":
			return connectors.Response{StatusCode: http.StatusConflict, Body: []byte("duplicate")}, nil
		}
		return connectors.Response{StatusCode: http.StatusCreated}, nil
	}}
	d := NewDispatcher(tr, 2, nil, zap.NewNop())

	res := d.Dispatch(context.Background(), records("1", "2", "3", "4", "5"), postOp("create-users"))

	require.Len(t, res.Outcomes, 5)
	got := byID(res.Outcomes)

	for _, id := range []string{"1", "2", "5"} {
		assert.Equal(t, domain.StatusSucceeded, got[id].Status, id)
		assert.Equal(t, domain.Code(http.StatusCreated), got[id].Code, id)
		assert.Equal(t, "created", got[id].Message, id)
	}

	assert.Equal(t, domain.StatusFailed, got["3"].Status)
	assert.Equal(t, domain.CodeTransportError, got["3"].Code)
	assert.Contains(t, got["3"].Message, "connection reset")

	assert.Equal(t, domain.StatusFailed, got["4"].Status)
	assert.Equal(t, domain.Code(http.StatusConflict), got["4"].Code)
	assert.Equal(t, "duplicate", got["4"].Message)

	assert.Equal(t, 5, res.Summary.Total)
	assert.Equal(t, 3, res.Summary.Succeeded)
	assert.Equal(t, 2, res.Summary.Failed)
	assert.Equal(t, "create-users", res.Summary.Workflow)
}

func TestDispatcher_RespectsConcurrencyLimit(t *testing.T) {
	tr := &fakeTransport{delay: 20 * time.Millisecond}
	d := NewDispatcher(tr, 3, nil, zap.NewNop())

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	res := d.Dispatch(context.Background(), records(ids...), postOp("create-users"))

	assert.Len(t, res.Outcomes, 20)
	assert.LessOrEqual(t, tr.peak.Load(), int32(3))
	assert.Equal(t, int32(3), tr.peak.Load(), "limit should actually be reached")
}

func TestDispatcher_EmptyBatch(t *testing.T) {
	d := NewDispatcher(&fakeTransport{}, 4, nil, zap.NewNop())

	res := d.Dispatch(context.Background(), nil, postOp("create-users"))

	assert.Empty(t, res.Outcomes)
	assert.Equal(t, 0, res.Summary.Total)
}

func TestDispatcher_BuildErrorIsInvalidData(t *testing.T) {
	tr := &fakeTransport{}
	op := postOp("modify-passwords")
	op.Build = func(rec domain.Record) (connectors.Request, error) {
		if rec.ID == "2" {
			return connectors.Request{}, errors.New("password missing")
		}
		return connectors.Request{Method: http.MethodPut, URL: "/users/" + rec.ID}, nil
	}
	d := NewDispatcher(tr, 2, nil, zap.NewNop())

	res := d.Dispatch(context.Background(), records("1", "2"), op)

	got := byID(res.Outcomes)
	assert.Equal(t, domain.StatusSucceeded, got["1"].Status)
	assert.Equal(t, domain.CodeInvalidData, got["2"].Code)
	assert.Equal(t, "password missing", got["2"].Message)
	assert.Nil(t, tr.body("/users/2"), "invalid record must not reach the API")
}

func TestDispatcher_PanicBecomesTransportError(t *testing.T) {
	tr := &fakeTransport{respond: func(req connectors.Request) (connectors.Response, error) {
		if req.URL == "/users/2" {
			panic("boom")
		}
		return connectors.Response{StatusCode: http.StatusCreated}, nil
	}}
	op := postOp("create-users")
	build := op.Build
	op.Build = func(rec domain.Record) (connectors.Request, error) {
		if rec.ID == "4" {
			panic("bad record")
		}
		return build(rec)
	}
	reg := prometheus.NewRegistry()
	d := NewDispatcher(tr, 2, NewMetrics(reg), zap.NewNop())

	res := d.Dispatch(context.Background(), records("1", "2", "3", "4"), op)

	require.Len(t, res.Outcomes, 4)
	got := byID(res.Outcomes)
	assert.Equal(t, domain.StatusSucceeded, got["1"].Status)
	assert.Equal(t, domain.StatusSucceeded, got["3"].Status)

	assert.Equal(t, domain.StatusFailed, got["2"].Status)
	assert.Equal(t, domain.CodeTransportError, got["2"].Code)
	assert.Equal(t, "panic: boom", got["2"].Message)

	assert.Equal(t, domain.CodeTransportError, got["4"].Code)
	assert.Equal(t, "panic: bad record", got["4"].Message)

	assert.Equal(t, 0.0, testutil.ToFloat64(d.metrics.InFlight), "gauge must return to zero after a panic")
	assert.Equal(t, 2.0, testutil.ToFloat64(d.metrics.OutcomesTotal.WithLabelValues("create-users", "failed")))
}

func TestDispatcher_CancelledContextStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDispatcher(&fakeTransport{}, 2, nil, zap.NewNop())

	res := d.Dispatch(ctx, records("1", "2", "3"), postOp("create-users"))

	assert.Len(t, res.Outcomes, 3)
	assert.Equal(t, 3, res.Summary.Succeeded)
}

func TestDispatcher_QuotaClipsPayload(t *testing.T) {
	tr := &fakeTransport{}
	lim := quota.NewLimiter(1)
	require.True(t, lim.Admit("B")) // слот B уже занят

	op := postOp("modify-users")
	op.Quota = lim
	reg := prometheus.NewRegistry()
	d := NewDispatcher(tr, 1, NewMetrics(reg), zap.NewNop())

	rec := domain.Record{
		ID:     "u1",
		Name:   "alice",
		Access: domain.Access{"A": true, "B": true},
		Fields: map[string]any{"fullName": "Alice Example"},
	}
	res := d.Dispatch(context.Background(), []domain.Record{rec}, op)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(tr.body("/users/u1"), &sent))
	assert.Equal(t, map[string]any{"A": true, "B": false}, sent["applicationAccess"])

	require.Len(t, res.OverLimit, 1)
	assert.Equal(t, "u1", res.OverLimit[0].RecordID)
	assert.Equal(t, "Alice Example", res.OverLimit[0].FullName)
	assert.False(t, res.OverLimit[0].Access["B"])

	assert.Equal(t, 1, lim.Count("A"))
	assert.Equal(t, 1, lim.Count("B"))
	assert.True(t, rec.Access["B"], "input record must not be mutated")

	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.QuotaClipped.WithLabelValues("B")))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.OutcomesTotal.WithLabelValues("modify-users", "succeeded")))
}

func TestDispatcher_QuotaAdmissionFollowsBatchOrder(t *testing.T) {
	lim := quota.NewLimiter(2)
	op := postOp("modify-users")
	op.Quota = lim
	d := NewDispatcher(&fakeTransport{}, 4, nil, zap.NewNop())

	recs := make([]domain.Record, 0, 5)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		recs = append(recs, domain.Record{ID: id, Access: domain.Access{"X": true}})
	}
	res := d.Dispatch(context.Background(), recs, op)

	require.Len(t, res.OverLimit, 3)
	clipped := map[string]bool{}
	for _, r := range res.OverLimit {
		clipped[r.RecordID] = true
	}
	assert.Equal(t, map[string]bool{"3": true, "4": true, "5": true}, clipped)
	assert.Equal(t, 2, lim.Count("X"))
}

func TestThrottledTransport_Disabled(t *testing.T) {
	tr := &fakeTransport{}
	assert.Same(t, connectors.Transport(tr), NewThrottledTransport(tr, 0, 0))
}

func TestThrottledTransport_CancelledWait(t *testing.T) {
	tr := NewThrottledTransport(&fakeTransport{}, 0.001, 1)
	ctx := context.Background()

	_, err := tr.Send(ctx, connectors.Request{Method: http.MethodGet, URL: "/a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = tr.Send(ctx, connectors.Request{Method: http.MethodGet, URL: "/b"})

	var te *connectors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "/b", te.URL)
}
