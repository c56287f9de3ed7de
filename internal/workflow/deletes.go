package workflow

import (
	"net/http"
	"net/url"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/normalize"
)

// deleteWorkflow: удаление по колонке UID: DELETE {path}/{uid}.
func deleteWorkflow(name, source, path string) Workflow {
	return Workflow{
		Name:           name,
		Source:         source,
		Concurrency:    10,
		Accept:         acceptModify,
		SuccessMessage: "deleted",
		Load:           loadUIDs,
		Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
			return connectors.Request{
				Method: http.MethodDelete,
				URL:    baseURL + path + "/" + url.PathEscape(rec.ID),
			}, nil
		},
	}
}

// loadUIDs требует колонку UID, пустые ячейки пропускаются.
func loadUIDs(lc LoadContext) ([]domain.Record, error) {
	tbl, err := loader.LoadSheet(lc.Source)
	if err != nil {
		return nil, err
	}
	if err := tbl.Require("UID"); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		uid := normalize.CleanID(normalize.Text(row["UID"]))
		if uid == "" {
			continue
		}
		records = append(records, domain.Record{ID: uid, Name: uid})
	}
	return records, nil
}
