// Package sqlite хранит итоги прогонов в локальном файле SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Драйвер SQLite без cgo

	"github.com/xela07ax/obt-migrator/internal/domain"
)

// SQLite ограничивает число параметров запроса, режем вставку на пачки
const batchSize = 500

const schema = `
CREATE TABLE IF NOT EXISTS migration_runs (
	run_id      TEXT PRIMARY KEY,
	workflow    TEXT NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	clipped     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS migration_outcomes (
	run_id    TEXT NOT NULL REFERENCES migration_runs(run_id),
	record_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	status    TEXT NOT NULL,
	code      TEXT NOT NULL,
	message   TEXT NOT NULL
);`

type OutcomeRepo struct {
	db *sql.DB
}

// Open открывает (или создает) файл базы и таблицы. ":memory:" допустим для тестов.
func Open(ctx context.Context, path string) (*OutcomeRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Одно соединение: иначе каждая :memory: база своя
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &OutcomeRepo{db: db}, nil
}

// SaveOutcomes пишет прогон и все его итоги в одной транзакции.
func (r *OutcomeRepo) SaveOutcomes(ctx context.Context, sum domain.RunSummary, outcomes []domain.Outcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO migration_runs (run_id, workflow, total, succeeded, failed, clipped, duration_ms, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		sum.RunID, sum.Workflow, sum.Total, sum.Succeeded, sum.Failed, sum.Clipped, sum.Duration.Milliseconds(), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(outcomes); start += batchSize {
		chunk := outcomes[start:min(start+batchSize, len(outcomes))]

		vals := make([]any, 0, len(chunk)*6)
		for _, o := range chunk {
			vals = append(vals, sum.RunID, o.RecordID, o.Name, o.Status.String(), o.Code.String(), o.Message)
		}
		query := "INSERT INTO migration_outcomes (run_id, record_id, name, status, code, message) VALUES " +
			strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?, ?, ?), ", len(chunk)), ", ")

		if _, err := tx.ExecContext(ctx, query, vals...); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Outcomes читает итоги прогона в порядке вставки.
func (r *OutcomeRepo) Outcomes(ctx context.Context, runID string) ([]domain.Outcome, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT record_id, name, status, code, message FROM migration_outcomes WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var status, code string
		if err := rows.Scan(&o.RecordID, &o.Name, &status, &code, &o.Message); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = domain.Status(status)
		if !o.Status.IsValid() {
			return nil, fmt.Errorf("outcome %s: unknown status %q", o.RecordID, status)
		}
		o.Code = domain.ParseCode(code)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OutcomeRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
