package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/repository/sqlite"
)

func sampleReport() Report {
	return Report{
		Summary: domain.RunSummary{RunID: "run-1", Workflow: "create-users", Total: 2, Succeeded: 1, Failed: 1},
		Outcomes: []domain.Outcome{
			{RecordID: "u1", Name: "alice", Status: domain.StatusSucceeded, Code: 201, Message: "created"},
			{RecordID: "u2", Name: "bob", Status: domain.StatusFailed, Code: domain.CodeTransportError, Message: "timeout"},
		},
	}
}

// fakeStore запоминает сохраненные прогоны
type fakeStore struct {
	saved  []Report
	closed bool
	err    error
}

func (f *fakeStore) SaveOutcomes(_ context.Context, sum domain.RunSummary, outcomes []domain.Outcome) error {
	f.saved = append(f.saved, Report{Summary: sum, Outcomes: outcomes})
	return f.err
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

func TestKindOf(t *testing.T) {
	cases := map[string]Kind{
		"results/result_create_users.xlsx": KindXLSX,
		"out.JSON":                         KindJSON,
		"runs.db":                          KindSQLite,
		"runs.sqlite":                      KindSQLite,
		"postgres://u:p@db/migr":           KindPostgres,
		"postgresql://db/migr":             KindPostgres,
		"report.csv":                       KindUnknown,
		"":                                 KindUnknown,
	}
	for dest, want := range cases {
		assert.Equal(t, want, KindOf(dest), dest)
	}
}

func TestWriter_XLSX(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "results", "result_create_users.xlsx")
	w := NewWriter(zap.NewNop(), nil)

	require.NoError(t, w.Write(context.Background(), dest, sampleReport()))

	tbl, err := loader.LoadSheet(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"RecordID", "Name", "Status", "Code", "Message"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "201", tbl.Rows[0]["Code"])
	assert.Equal(t, "transport error", tbl.Rows[1]["Code"])
	assert.Equal(t, "failed", tbl.Rows[1]["Status"])
}

func TestWriter_JSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, NewWriter(zap.NewNop(), nil).Write(context.Background(), dest, sampleReport()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["Name"])
	assert.Equal(t, "timeout", rows[1]["Message"])
}

func TestWriter_SQLite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "runs.db")
	require.NoError(t, NewWriter(zap.NewNop(), nil).Write(context.Background(), dest, sampleReport()))

	repo, err := sqlite.Open(context.Background(), dest)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Outcomes(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, sampleReport().Outcomes, got)
}

func TestWriter_Mirrors(t *testing.T) {
	store := &fakeStore{}
	open := func(_ context.Context, dest string) (OutcomeStore, error) {
		assert.Equal(t, "postgres://db/migr", dest)
		return store, nil
	}
	dest := filepath.Join(t.TempDir(), "r.xlsx")
	w := NewWriter(zap.NewNop(), open, "", "postgres://db/migr")

	require.NoError(t, w.Write(context.Background(), dest, sampleReport()))

	require.Len(t, store.saved, 1)
	assert.Equal(t, "run-1", store.saved[0].Summary.RunID)
	assert.True(t, store.closed)
	assert.FileExists(t, dest)
}

func TestWriter_Failures(t *testing.T) {
	storeErr := errors.New("connection refused")
	open := func(context.Context, string) (OutcomeStore, error) { return &fakeStore{err: storeErr}, nil }
	w := NewWriter(zap.NewNop(), open, "postgres://db/migr")

	err := w.Write(context.Background(), "report.csv", sampleReport())
	assert.ErrorIs(t, err, ErrUnsupportedDestination)
	assert.ErrorIs(t, err, storeErr)

	assert.ErrorIs(t, w.WriteTable("runs.db", Table{}), ErrUnsupportedDestination)
}

func TestOverLimitTable(t *testing.T) {
	tbl := OverLimitTable([]domain.OverLimitRecord{
		{RecordID: "u1", Name: "alice", FullName: "Alice A", Access: domain.Access{"B": false, "A": true}},
		{RecordID: "u2", Name: "bob", Access: domain.Access{"C": false}},
	})

	assert.Equal(t, []string{"RecordID", "Name", "FullName", "A", "B", "C"}, tbl.Columns)
	assert.Equal(t, []any{"u1", "alice", "Alice A", true, false, nil}, tbl.Rows[0])
	assert.Equal(t, []any{"u2", "bob", "", nil, nil, false}, tbl.Rows[1])
}

func TestRecordTable(t *testing.T) {
	tbl := RecordTable("duplicates", []domain.Record{
		{ID: "1", Name: "alice", Fields: map[string]any{"email": "a@x", "userCategories": []any{"7"}}},
		{ID: "2", Name: "alice"},
	})

	assert.Equal(t, []string{"RecordID", "Name", "email", "userCategories"}, tbl.Columns)
	assert.Equal(t, []any{"1", "alice", "a@x", `["7"]`}, tbl.Rows[0])
	assert.Equal(t, []any{"2", "alice", nil, nil}, tbl.Rows[1])
}
