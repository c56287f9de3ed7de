// Package report пишет итоги прогона в файлы и базы.
// Куда писать, определяется по назначению: .xlsx, .json, .db/.sqlite или postgres:// DSN.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/normalize"
)

// ErrUnsupportedDestination: по назначению нельзя подобрать приемник.
var ErrUnsupportedDestination = errors.New("unsupported report destination")

type Kind int

const (
	KindUnknown Kind = iota
	KindXLSX
	KindJSON
	KindSQLite
	KindPostgres
)

// KindOf определяет приемник по назначению.
func KindOf(dest string) Kind {
	lower := strings.ToLower(strings.TrimSpace(dest))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres
	}
	switch filepath.Ext(lower) {
	case ".xlsx":
		return KindXLSX
	case ".json":
		return KindJSON
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	}
	return KindUnknown
}

// IsDatabase: назначение принимает только итоги прогона, не произвольные таблицы.
func (k Kind) IsDatabase() bool { return k == KindSQLite || k == KindPostgres }

// Table: плоский отчет: один лист xlsx или массив объектов json.
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]any
}

// Report: итоги одного прогона workflow.
type Report struct {
	Summary  domain.RunSummary
	Outcomes []domain.Outcome
}

func (r Report) Table() Table {
	t := Table{
		Sheet:   "results",
		Columns: []string{"RecordID", "Name", "Status", "Code", "Message"},
		Rows:    make([][]any, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		t.Rows = append(t.Rows, []any{o.RecordID, o.Name, o.Status.String(), o.Code.String(), o.Message})
	}
	return t
}

// OverLimitTable: записи, срезанные квотой, с доступами в отправленном виде.
func OverLimitTable(recs []domain.OverLimitRecord) Table {
	apps := map[string]struct{}{}
	for _, r := range recs {
		for app := range r.Access {
			apps[app] = struct{}{}
		}
	}
	appCols := slices.Sorted(maps.Keys(apps))

	t := Table{
		Sheet:   "over_limit",
		Columns: append([]string{"RecordID", "Name", "FullName"}, appCols...),
		Rows:    make([][]any, 0, len(recs)),
	}
	for _, r := range recs {
		row := []any{r.RecordID, r.Name, r.FullName}
		for _, app := range appCols {
			v, ok := r.Access[app]
			if !ok {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// RecordTable: исходные записи целиком; вложенные значения кодируются в json.
func RecordTable(sheet string, recs []domain.Record) Table {
	keys := map[string]struct{}{}
	for _, r := range recs {
		for k := range r.Fields {
			keys[k] = struct{}{}
		}
	}
	fieldCols := slices.Sorted(maps.Keys(keys))

	t := Table{
		Sheet:   sheet,
		Columns: append([]string{"RecordID", "Name"}, fieldCols...),
		Rows:    make([][]any, 0, len(recs)),
	}
	for _, r := range recs {
		row := []any{r.ID, r.Name}
		for _, k := range fieldCols {
			row = append(row, cell(r.Fields[k]))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cell(v any) any {
	switch v.(type) {
	case nil:
		return nil
	case map[string]any, []any, []string:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return normalize.Text(v)
}
