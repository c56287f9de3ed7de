package workflow

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/normalize"
)

const programAccessPrefix = "programmAcces_application_"

// extraProgramRanges добавляются ко всем приложениям, кроме df: 70-79, 700-799, 7000-7999.
var extraProgramRanges = func() []string {
	var out []string
	for _, r := range [][2]int{{70, 80}, {700, 800}, {7000, 8000}} {
		for i := r[0]; i < r[1]; i++ {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out
}()

var createProgramPolicies = Workflow{
	Name:           "create-program-policies",
	Source:         "OBT_Export_Create_ProgrammPolicies.xlsx",
	Concurrency:    8,
	Accept:         acceptCreate,
	SuccessMessage: "program policy created",
	Load: func(lc LoadContext) ([]domain.Record, error) {
		return loadPolicies(lc, programAccess)
	},
	Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
		return jsonRequest(http.MethodPost, baseURL+infra.PathProgramPolicies, rec.Payload(domain.Schema{}))
	},
}

var createClientPolicies = Workflow{
	Name:           "create-client-policies",
	Source:         "OBT_Export_Create_ClientPolicies.xlsx",
	Concurrency:    1,
	Accept:         acceptCreate,
	SuccessMessage: "client policy created",
	Load: func(lc LoadContext) ([]domain.Record, error) {
		return loadPolicies(lc, mandantAccess)
	},
	Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
		return jsonRequest(http.MethodPost, baseURL+infra.PathClientPolicies, rec.Payload(domain.Schema{}))
	},
}

var (
	deleteProgramPolicies = deleteWorkflow("delete-program-policies", "DeleteProgrammPolicies.xlsx", infra.PathProgramPolicies)
	deleteClientPolicies  = deleteWorkflow("delete-client-policies", "DeleteClientPolicies.xlsx", infra.PathClientPolicies)
)

// accessFunc дописывает в policy специфичную для вида политики часть.
type accessFunc func(policy map[string]any, columns []string, row loader.Row)

// loadPolicies строит по политике на каждую непустую строку листа.
// У политики нет своего id, в итогах она видна как номер строки листа.
func loadPolicies(lc LoadContext, access accessFunc) ([]domain.Record, error) {
	tbl, err := loader.LoadSheet(lc.Source)
	if err != nil {
		return nil, err
	}
	now := lc.Now
	if now == nil {
		now = time.Now
	}

	records := make([]domain.Record, 0, len(tbl.Rows))
	for i, row := range tbl.Rows {
		name := normalize.Text(row["name_data_de"])
		policy := map[string]any{
			"name": map[string]any{
				"data": map[string]any{"de": name, "de_DE": name, "en": "", "fr": "", "it": ""},
			},
			"negative":       normalize.Bool(row["negative"]),
			"force":          normalize.Bool(row["force"]),
			"inactive":       normalize.Bool(row["inactive"]),
			"userCategories": normalize.SplitList(normalize.Text(row["userCategories"])),
			"users":          normalize.SplitList(normalize.Text(row["users"])),
			"mutationDate":   now().Format(time.RFC3339),
		}
		access(policy, tbl.Columns, row)

		records = append(records, domain.Record{
			ID:     fmt.Sprintf("row %d", i+2),
			Name:   name,
			Fields: policy,
		})
	}
	return records, nil
}

// programAccess собирает programAccess из колонок programmAcces_application_<app>:
// пробелы убираются, пустые значения и "0" отбрасываются.
func programAccess(policy map[string]any, columns []string, row loader.Row) {
	entries := []any{}
	for _, col := range columns {
		if !strings.HasPrefix(col, programAccessPrefix) {
			continue
		}
		app := col[strings.LastIndex(col, "_")+1:]
		raw := strings.ReplaceAll(normalize.Text(row[col]), " ", "")

		var ranges []string
		for _, r := range strings.Split(raw, ",") {
			if r != "" && r != "0" {
				ranges = append(ranges, r)
			}
		}
		if len(ranges) == 0 {
			continue
		}
		if app != "df" {
			ranges = append(ranges, extraProgramRanges...)
		}
		entries = append(entries, map[string]any{
			"application": app,
			"range":       strings.Join(ranges, ","),
		})
	}
	policy["programAccess"] = entries
}

// mandantAccess: приложения списком, диапазон строкой без повторов в порядке появления.
func mandantAccess(policy map[string]any, _ []string, row loader.Row) {
	policy["mandantAccess"] = map[string]any{
		"applications": normalize.SplitList(normalize.Text(row["mandantAccess_applications"])),
		"range":        strings.Join(normalize.UniqueList(normalize.SplitList(normalize.Text(row["mandantAccess_range"]))), ","),
	}
}
