package workflow

import (
	"maps"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/normalize"
	"github.com/xela07ax/obt-migrator/internal/report"
)

var createUsers = Workflow{
	Name:           "create-users",
	Source:         "OBT_Export_Create_Users.json",
	Concurrency:    5,
	Accept:         acceptCreate,
	SuccessMessage: "user created",
	Load:           loadUsers,
	Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
		return jsonRequest(http.MethodPost, baseURL+infra.PathUsers, userPayload(rec))
	},
}

var createServiceUsers = Workflow{
	Name:           "create-service-users",
	Source:         "OBT_Export_Create_ServiceUsers.json",
	Concurrency:    5,
	Accept:         acceptModify,
	SuccessMessage: "service user created",
	Load: func(lc LoadContext) ([]domain.Record, error) {
		records, err := loadUsers(lc)
		if err != nil {
			return nil, err
		}
		for i := range records {
			dropMandantsWithoutNumber(records[i].Fields, "userClassMandants")
		}
		return records, nil
	},
	Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
		return jsonRequest(http.MethodPost, baseURL+infra.PathServiceUsers+"/"+rec.ID, userPayload(rec))
	},
}

var deleteUsers = deleteWorkflow("delete-users", "DeleteUsers.xlsx", infra.PathUsers)

// userPayload: тело запроса пользователя без пустых значений на любом уровне.
func userPayload(rec domain.Record) any {
	return normalize.StripEmpty(rec.Payload(domain.UserSchema))
}

// loadUsers читает выгрузку пользователей, чистит идентификаторы,
// пишет отчет о дублях имен и делает идентификаторы и имена уникальными.
func loadUsers(lc LoadContext) ([]domain.Record, error) {
	rows, err := loader.LoadJSON(lc.Source)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, ok := userRecord(row)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	if dups := normalize.FindDuplicateNames(records); len(dups) > 0 {
		dest := infra.Resolve(lc.ResultsDir, infra.DuplicatesReport(lc.Workflow))
		lc.Logger.Info("duplicate user names found", zap.Int("records", len(dups)), zap.String("report", dest))
		_ = lc.Reports.WriteTable(dest, report.RecordTable("duplicates", dups))
	}

	return normalize.DedupNames(normalize.DedupIDs(records)), nil
}

func userRecord(row loader.Row) (domain.Record, bool) {
	id := normalize.CleanID(normalize.Text(row[domain.UserSchema.IDKey]))
	if !normalize.Resolvable(id) {
		return domain.Record{}, false
	}

	fields := maps.Clone(row)
	delete(fields, domain.UserSchema.IDKey)
	delete(fields, domain.UserSchema.NameKey)
	delete(fields, domain.UserSchema.AccessKey)

	if v, ok := fields["defaultUserCategory"]; ok && v != nil {
		fields["defaultUserCategory"] = normalize.CleanID(normalize.Text(v))
	}
	fields["userCategories"] = normalize.ParseCodes(row["userCategories"])

	return domain.Record{
		ID:     id,
		Name:   normalize.Text(row[domain.UserSchema.NameKey]),
		Access: accessOf(row[domain.UserSchema.AccessKey]),
		Fields: fields,
	}, true
}

// accessOf переводит applicationAccess в карту флагов; без карты доступов нет.
func accessOf(v any) domain.Access {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	a := make(domain.Access, len(m))
	for app, granted := range m {
		a[app] = normalize.Bool(granted)
	}
	return a
}

// dropMandantsWithoutNumber убирает из списка мандантов записи без mandantNumber.
func dropMandantsWithoutNumber(fields map[string]any, key string) {
	list, ok := fields[key].([]any)
	if !ok {
		return
	}
	kept := make([]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok || m["mandantNumber"] == nil {
			continue
		}
		kept = append(kept, m)
	}
	fields[key] = kept
}
