package workflow

import (
	"net/http"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/normalize"
)

var createCategories = Workflow{
	Name:           "create-categories",
	Source:         "OBT_Export_Create_Categories.json",
	Concurrency:    1,
	Accept:         acceptCreate,
	SuccessMessage: "user category created",
	Load:           loadCategories,
	Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
		// Категория уходит в API ровно в том виде, в каком пришла из выгрузки
		return jsonRequest(http.MethodPost, baseURL+infra.PathCategories, rec.Payload(domain.Schema{}))
	},
}

// loadCategories отбрасывает служебные категории (свою или родительскую с нулевым id)
// и повторы по userCategoryId.
func loadCategories(lc LoadContext) ([]domain.Record, error) {
	rows, err := loader.LoadJSON(lc.Source)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		id := normalize.CleanID(normalize.Text(row["userCategoryId"]))
		parent := normalize.CleanID(normalize.Text(row["parentUserCategoryId"]))
		if !normalize.Resolvable(id) || parent == domain.NilID {
			continue
		}
		records = append(records, domain.Record{
			ID:     id,
			Name:   categoryName(row),
			Fields: row,
		})
	}
	return normalize.DedupIDs(records), nil
}

// categoryName: немецкое имя категории для логов и отчета.
func categoryName(row loader.Row) string {
	name, _ := row["name"].(map[string]any)
	data, _ := name["data"].(map[string]any)
	return normalize.Text(data["de"])
}

var deleteCategories = deleteWorkflow("delete-categories", "DeleteCategories.xlsx", infra.PathCategories)
