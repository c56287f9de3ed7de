package infra

import (
	"path/filepath"
	"strings"
)

const (
	// APIPrefix Базовый путь provisioning API относительно base url
	APIPrefix = "/api/provisioning-users/v1"

	// TokenPath: выдача токена client credentials
	TokenPath = "/oauth/oauth2/v1/token"
)

// Ресурсы API
const (
	PathCategories      = APIPrefix + "/categories"
	PathUsers           = APIPrefix + "/users"
	PathServiceUsers    = APIPrefix + "/users/serviceusers"
	PathProgramPolicies = APIPrefix + "/policies/programs"
	PathClientPolicies  = APIPrefix + "/policies/mandants"
)

// Отчеты в results dir
const (
	OverLimitReport = "users_over_limit.xlsx"
)

// ResultReport Генератор имени отчета итогов workflow
func ResultReport(workflow string) string {
	return "result_" + strings.ReplaceAll(workflow, "-", "_") + ".xlsx"
}

// DuplicatesReport Генератор имени отчета дубликатов имен
func DuplicatesReport(workflow string) string {
	return "duplicates_" + strings.ReplaceAll(workflow, "-", "_") + ".xlsx"
}

// Resolve кладет относительное имя в dir, абсолютные пути и DSN не трогает.
func Resolve(dir, name string) string {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "://") {
		return name
	}
	return filepath.Join(dir, name)
}
