package workflow

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/loader"
	"github.com/xela07ax/obt-migrator/internal/normalize"
)

var errMissingPassword = errors.New("user id or password missing")

var modifyPasswords = Workflow{
	Name:           "modify-passwords",
	Source:         "OBT_Export_Modify_Passwords_Users.xlsx",
	Concurrency:    5,
	Accept:         acceptPassword,
	SuccessMessage: "password updated",
	Load:           loadPasswords,
	Build:          buildPassword,
}

// loadPasswords не фильтрует строки: без id или пароля запись получит итог invalid data.
func loadPasswords(lc LoadContext) ([]domain.Record, error) {
	tbl, err := loader.LoadSheet(lc.Source)
	if err != nil {
		return nil, err
	}
	if err := tbl.Require("UserId", "Password"); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		records = append(records, domain.Record{
			ID:     normalize.CleanID(normalize.Text(row["UserId"])),
			Fields: map[string]any{"password": strings.TrimSpace(normalize.Text(row["Password"]))},
		})
	}
	return records, nil
}

// buildPassword: API ждет пароль в base64 телом text/plain.
func buildPassword(baseURL string, rec domain.Record) (connectors.Request, error) {
	password := rec.Field("password")
	if rec.ID == "" || password == "" {
		return connectors.Request{}, errMissingPassword
	}
	return connectors.Request{
		Method: http.MethodPut,
		URL:    fmt.Sprintf("%s%s/%s/password", baseURL, infra.PathUsers, rec.ID),
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(base64.StdEncoding.EncodeToString([]byte(password))),
	}, nil
}
