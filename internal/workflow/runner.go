package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/engine"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/quota"
	"github.com/xela07ax/obt-migrator/internal/report"
)

// Runner прогоняет сценарии поверх общего транспорта, метрик и отчетов.
type Runner struct {
	cfg       *infra.Config
	baseURL   string
	transport connectors.Transport
	metrics   *engine.Metrics
	reports   *report.Writer
	logger    *zap.Logger

	now      func() time.Time
	newRunID func() string
}

func NewRunner(cfg *infra.Config, baseURL string, transport connectors.Transport, metrics *engine.Metrics, reports *report.Writer, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		baseURL:   baseURL,
		transport: transport,
		metrics:   metrics,
		reports:   reports,
		logger:    logger.Named("workflow"),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// RunSequence выполняет сценарии по порядку. Пустая пачка не останавливает
// последовательность, ошибка конфигурации останавливает. Отмена ctx
// проверяется только между сценариями.
func (r *Runner) RunSequence(ctx context.Context, names []string) ([]domain.RunSummary, error) {
	summaries := make([]domain.RunSummary, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run interrupted, remaining workflows skipped", zap.String("next", name))
			return summaries, err
		}

		sum, err := r.Run(ctx, name)
		switch {
		case errors.Is(err, domain.ErrEmptyBatch):
			r.logger.Warn("nothing to dispatch", zap.String("workflow", name), zap.Error(err))
			continue
		case err != nil:
			r.logger.Error("workflow aborted", zap.String("workflow", name), zap.Error(err))
			return summaries, fmt.Errorf("%s: %w", name, err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// Run загружает записи сценария, отправляет их и пишет отчеты.
func (r *Runner) Run(ctx context.Context, name string) (domain.RunSummary, error) {
	w, err := Lookup(name)
	if err != nil {
		return domain.RunSummary{}, err
	}

	wc := r.cfg.Workflow(name, infra.WorkflowConfig{
		Concurrency: w.Concurrency,
		Source:      w.Source,
		Result:      infra.ResultReport(name),
	})

	lc := LoadContext{
		Workflow:   name,
		Source:     infra.Resolve(r.cfg.Data.Dir, wc.Source),
		DataDir:    r.cfg.Data.Dir,
		ResultsDir: r.cfg.Data.ResultsDir,
		Reports:    r.reports,
		Logger:     r.logger.With(zap.String("workflow", name)),
		Now:        r.now,
	}
	records, err := w.Load(lc)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("load %s: %w", lc.Source, err)
	}
	if len(records) == 0 {
		return domain.RunSummary{}, fmt.Errorf("%s: %w", lc.Source, domain.ErrEmptyBatch)
	}

	op := engine.Operation{
		Name:           name,
		Accept:         w.Accept,
		SuccessMessage: w.SuccessMessage,
		Build: func(rec domain.Record) (connectors.Request, error) {
			return w.Build(r.baseURL, rec)
		},
	}
	if w.Quota {
		op.Quota = quota.NewLimiter(r.cfg.Quota.LimitPerApplication)
	}

	d := engine.NewDispatcher(r.transport, wc.Concurrency, r.metrics, r.logger)
	r.logger.Info("dispatch started",
		zap.String("workflow", name),
		zap.Int("records", len(records)),
		zap.Int("concurrency", d.Concurrency()))

	res := d.Dispatch(ctx, records, op)
	res.Summary.RunID = r.newRunID()

	_ = r.reports.Write(ctx, infra.Resolve(r.cfg.Data.ResultsDir, wc.Result), report.Report{
		Summary:  res.Summary,
		Outcomes: res.Outcomes,
	})
	if w.Quota {
		_ = r.reports.WriteTable(infra.Resolve(r.cfg.Data.ResultsDir, infra.OverLimitReport), report.OverLimitTable(res.OverLimit))
	}

	r.logger.Info("dispatch finished",
		zap.String("workflow", name),
		zap.String("run_id", res.Summary.RunID),
		zap.Int("total", res.Summary.Total),
		zap.Int("succeeded", res.Summary.Succeeded),
		zap.Int("failed", res.Summary.Failed),
		zap.Int("clipped", res.Summary.Clipped),
		zap.Duration("duration", res.Summary.Duration))

	return res.Summary, nil
}
