package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/obt-migrator/internal/audit"
	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/quota"
)

// DefaultConcurrency: сколько вызовов API допускается одновременно по умолчанию.
const DefaultConcurrency = 5

// Operation описывает одну мутацию для всех записей пачки.
type Operation struct {
	// Name: имя workflow, идет в логи и метрики.
	Name string
	// Accept: коды, при которых вызов считается успешным.
	Accept []int
	// SuccessMessage пишется в итог успешной записи.
	SuccessMessage string
	// Build собирает запрос; ошибка означает, что запись нельзя отправить.
	Build func(rec domain.Record) (connectors.Request, error)
	// Quota, если задана, применяется к запрошенным доступам каждой записи до вызова.
	Quota *quota.Limiter
}

// Result: по одному итогу на каждую входную запись, порядок не гарантируется.
type Result struct {
	Outcomes  []domain.Outcome
	OverLimit []domain.OverLimitRecord
	Summary   domain.RunSummary
}

type Dispatcher struct {
	transport   connectors.Transport
	concurrency int
	metrics     *Metrics
	logger      *zap.Logger
}

func NewDispatcher(transport connectors.Transport, concurrency int, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		transport:   transport,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger.Named("dispatcher"),
	}
}

func (d *Dispatcher) Concurrency() int { return d.concurrency }

// Dispatch отправляет все записи, держа в полете не больше concurrency вызовов.
// Квота применяется в горутине-отправителе в порядке пачки, поэтому
// при одинаковом порядке записей выдача слотов воспроизводима.
// Отмена ctx не прерывает уже поставленные записи: каждая доводится до итога.
func (d *Dispatcher) Dispatch(ctx context.Context, records []domain.Record, op Operation) Result {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	collector := audit.NewCollector(len(records))

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, rec := range records {
		if op.Quota != nil {
			rec = d.applyQuota(op, rec, collector)
		}
		g.Go(func() error {
			o := d.dispatchOne(ctx, rec, op)
			collector.Add(o)
			d.observe(op, o)
			return nil
		})
	}
	_ = g.Wait()

	summary := collector.Summary()
	summary.Workflow = op.Name
	summary.Duration = time.Since(start)

	return Result{
		Outcomes:  collector.Outcomes(),
		OverLimit: collector.OverLimit(),
		Summary:   summary,
	}
}

func (d *Dispatcher) applyQuota(op Operation, rec domain.Record, sink audit.Recorder) domain.Record {
	sent, clipped := op.Quota.Apply(rec)
	if !clipped {
		return sent
	}

	for _, app := range rec.Access.Names() {
		if rec.Access[app] && !sent.Access[app] {
			d.metrics.QuotaClipped.WithLabelValues(app).Inc()
		}
	}
	sink.AddOverLimit(domain.OverLimitRecord{
		RecordID: sent.ID,
		Name:     sent.Name,
		FullName: sent.Field("fullName"),
		Access:   sent.Access,
	})
	d.logger.Warn("application quota exceeded, access denied in payload",
		zap.String("workflow", op.Name),
		zap.String("record_id", sent.ID),
		zap.Int("limit", op.Quota.Limit()))
	return sent
}

func (d *Dispatcher) dispatchOne(ctx context.Context, rec domain.Record, op Operation) (o domain.Outcome) {
	// Паника в сборке запроса или транспорте не должна съесть итог записи
	defer func() {
		if r := recover(); r != nil {
			o = domain.Failed(rec, domain.CodeTransportError, fmt.Sprintf("panic: %v", r))
		}
	}()

	req, err := op.Build(rec)
	if err != nil {
		return domain.Failed(rec, domain.CodeInvalidData, err.Error())
	}

	d.metrics.InFlight.Inc()
	defer d.metrics.InFlight.Dec()
	start := time.Now()
	resp, err := d.transport.Send(ctx, req)
	d.metrics.RequestDuration.WithLabelValues(op.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		return domain.Failed(rec, domain.CodeTransportError, err.Error())
	}
	if slices.Contains(op.Accept, resp.StatusCode) {
		return domain.Succeeded(rec, resp.StatusCode, op.SuccessMessage)
	}
	return domain.Failed(rec, domain.Code(resp.StatusCode), string(resp.Body))
}

func (d *Dispatcher) observe(op Operation, o domain.Outcome) {
	d.metrics.OutcomesTotal.WithLabelValues(op.Name, o.Status.String()).Inc()

	fields := []zap.Field{
		zap.String("workflow", op.Name),
		zap.String("record_id", o.RecordID),
		zap.String("name", o.Name),
		zap.String("status", o.Status.String()),
		zap.String("code", o.Code.String()),
	}
	if o.Status == domain.StatusSucceeded {
		d.logger.Info("record dispatched", fields...)
		return
	}
	d.logger.Error("record failed", append(fields, zap.String("message", o.Message))...)
}
