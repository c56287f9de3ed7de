package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/repository/postgres"
	"github.com/xela07ax/obt-migrator/internal/repository/sqlite"
)

// OutcomeStore: база, принимающая итоги прогонов.
type OutcomeStore interface {
	SaveOutcomes(ctx context.Context, sum domain.RunSummary, outcomes []domain.Outcome) error
	Close() error
}

// OpenStoreFunc открывает базу по назначению.
type OpenStoreFunc func(ctx context.Context, dest string) (OutcomeStore, error)

// OpenStore: sqlite по пути файла, postgres по DSN.
func OpenStore(ctx context.Context, dest string) (OutcomeStore, error) {
	switch KindOf(dest) {
	case KindSQLite:
		return sqlite.Open(ctx, dest)
	case KindPostgres:
		return postgres.Open(ctx, dest)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDestination, dest)
}

// Writer раскладывает отчеты по приемникам. Ошибки записи логируются
// и возвращаются, но прогон из-за них не прерывается.
type Writer struct {
	logger    *zap.Logger
	openStore OpenStoreFunc
	mirrors   []string // куда дополнительно уходят итоги каждого прогона
}

func NewWriter(logger *zap.Logger, openStore OpenStoreFunc, mirrors ...string) *Writer {
	if openStore == nil {
		openStore = OpenStore
	}
	var ms []string
	for _, m := range mirrors {
		if m != "" {
			ms = append(ms, m)
		}
	}
	return &Writer{logger: logger.Named("report"), openStore: openStore, mirrors: ms}
}

// Write пишет итоги прогона в dest и во все зеркала.
func (w *Writer) Write(ctx context.Context, dest string, r Report) error {
	errs := []error{w.writeOne(ctx, dest, r)}
	for _, m := range w.mirrors {
		errs = append(errs, w.writeOne(ctx, m, r))
	}
	return errors.Join(errs...)
}

// WriteTable пишет произвольную таблицу; базы таблиц не принимают.
func (w *Writer) WriteTable(dest string, t Table) error {
	var err error
	switch KindOf(dest) {
	case KindXLSX:
		err = writeXLSX(dest, t)
	case KindJSON:
		err = writeJSON(dest, t)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedDestination, dest)
	}
	if err != nil {
		w.logger.Error("report not written", zap.String("destination", dest), zap.Error(err))
		return err
	}
	w.logger.Info("report written", zap.String("destination", dest), zap.Int("rows", len(t.Rows)))
	return nil
}

func (w *Writer) writeOne(ctx context.Context, dest string, r Report) error {
	if !KindOf(dest).IsDatabase() {
		return w.WriteTable(dest, r.Table())
	}

	err := w.saveToStore(ctx, dest, r)
	if err != nil {
		w.logger.Error("outcomes not stored", zap.String("workflow", r.Summary.Workflow), zap.Error(err))
		return err
	}
	w.logger.Info("outcomes stored",
		zap.String("workflow", r.Summary.Workflow),
		zap.String("run_id", r.Summary.RunID),
		zap.Int("rows", len(r.Outcomes)))
	return nil
}

func (w *Writer) saveToStore(ctx context.Context, dest string, r Report) error {
	store, err := w.openStore(ctx, dest)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveOutcomes(ctx, r.Summary, r.Outcomes)
}
