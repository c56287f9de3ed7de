package workflow

import (
	"net/http"
	"path/filepath"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/normalize"
)

// mandantSheet: лист с правами пользователя по мандантам.
type mandantSheet struct {
	File       string
	UserCol    string
	MandantCol string
	ValueCols  []string
	Field      string // куда в записи кладется список
}

var (
	userClassSheet = mandantSheet{
		File:       "OBT_Export_sub_ClientUserClasses.xlsx",
		UserCol:    "UserUID",
		MandantCol: "mandantNumber",
		ValueCols: []string{
			"divisions", "accounts", "costCentres", "employeePayrollAccounting", "employeeHrms",
			"releasePayrollHr", "swiss21Salary", "saveMandant", "restoreMandant", "abaAuditAdmin",
			"abaAuditView", "abaClockMonitor", "abaTrak",
		},
		Field: "userClassMandants",
	}
	appSupervisorSheet = mandantSheet{
		File:       "OBT_Export_sub_ClientApplicationSupervisor.xlsx",
		UserCol:    "UserUID",
		MandantCol: "Client",
		ValueCols: []string{
			"fibu", "debi", "kred", "lohn", "adre", "orde", "hrms", "inve",
			"proj", "epay", "shop", "upps", "sccm", "info", "immo", "norm",
		},
		Field: "userAppSupervisorMandants",
	}
)

var modifyUsers = Workflow{
	Name:           "modify-users",
	Source:         "OBT_Export_Modify_Users.json",
	Concurrency:    5,
	Accept:         acceptModify,
	SuccessMessage: "user updated",
	Quota:          true,
	Load:           loadModifyUsers,
	Build: func(baseURL string, rec domain.Record) (connectors.Request, error) {
		return jsonRequest(http.MethodPut, baseURL+infra.PathUsers+"/"+rec.ID, userPayload(rec))
	},
}

func loadModifyUsers(lc LoadContext) ([]domain.Record, error) {
	records, err := loadUsers(lc)
	if err != nil {
		return nil, err
	}

	for _, sheet := range []mandantSheet{userClassSheet, appSupervisorSheet} {
		byUser, err := sheet.load(filepath.Join(lc.DataDir, sheet.File))
		if err != nil {
			return nil, err
		}
		for i := range records {
			entries := byUser[records[i].ID]
			if entries == nil {
				entries = []any{}
			}
			records[i].Fields[sheet.Field] = entries
		}
	}
	return records, nil
}

// load строит карту UserUID -> права по мандантам. Строка без валидного номера
// манданта или без единой выданной права пропускается; право выдано, если ячейка равна "1".
func (s mandantSheet) load(path string) (map[string][]any, error) {
	tbl, err := loader.LoadSheet(path)
	if err != nil {
		return nil, err
	}
	if err := tbl.Require(s.UserCol, s.MandantCol); err != nil {
		return nil, err
	}

	out := make(map[string][]any)
	for _, row := range tbl.Rows {
		uid := normalize.CleanID(normalize.Text(row[s.UserCol]))
		mandant, ok := normalize.Int(row[s.MandantCol])
		if uid == "" || !ok {
			continue
		}

		entry := map[string]any{"mandantNumber": mandant}
		granted := false
		for _, col := range s.ValueCols {
			v := normalize.Text(row[col]) == "1"
			entry[col] = v
			granted = granted || v
		}
		if granted {
			out[uid] = append(out[uid], entry)
		}
	}
	return out, nil
}
