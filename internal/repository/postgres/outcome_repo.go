package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/obt-migrator/internal/domain"
)

// Postgres ограничивает запрос 65535 параметрами, режем вставку на пачки
const batchSize = 1000

const schema = `
CREATE TABLE IF NOT EXISTS migration_runs (
	run_id      UUID PRIMARY KEY,
	workflow    TEXT NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	clipped     INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS migration_outcomes (
	run_id    UUID NOT NULL REFERENCES migration_runs(run_id),
	record_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	status    TEXT NOT NULL,
	code      TEXT NOT NULL,
	message   TEXT NOT NULL
);`

type OutcomeRepo struct {
	db *sql.DB
}

func NewOutcomeRepo(db *sql.DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

// Open подключается по connString и создает таблицы, если их нет.
func Open(ctx context.Context, connString string) (*OutcomeRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := NewOutcomeRepo(db)
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *OutcomeRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveOutcomes пишет прогон и все его итоги в одной транзакции.
func (r *OutcomeRepo) SaveOutcomes(ctx context.Context, sum domain.RunSummary, outcomes []domain.Outcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO migration_runs (run_id, workflow, total, succeeded, failed, clipped, duration_ms, finished_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		sum.RunID, sum.Workflow, sum.Total, sum.Succeeded, sum.Failed, sum.Clipped, sum.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(outcomes); start += batchSize {
		end := min(start+batchSize, len(outcomes))
		if err := insertOutcomes(ctx, tx, sum.RunID, outcomes[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertOutcomes(ctx context.Context, tx *sql.Tx, runID string, outcomes []domain.Outcome) error {
	// Количество колонок в таблице migration_outcomes
	const numFields = 6
	placeholders := make([]string, 0, len(outcomes))
	vals := make([]any, 0, len(outcomes)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, o := range outcomes {
		p := i * numFields
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6))
		vals = append(vals, runID, o.RecordID, o.Name, o.Status.String(), o.Code.String(), o.Message)
	}

	query := "INSERT INTO migration_outcomes (run_id, record_id, name, status, code, message) VALUES " +
		strings.Join(placeholders, ", ")

	if _, err := tx.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert outcomes: %w", err)
	}
	return nil
}

func (r *OutcomeRepo) Close() error {
	return r.db.Close()
}
