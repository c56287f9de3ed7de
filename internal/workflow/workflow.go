// Package workflow описывает миграционные сценарии: откуда читать записи,
// как собрать вызов API и какие ответы считать успехом.
package workflow

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/report"
)

var (
	acceptCreate   = []int{http.StatusOK, http.StatusCreated}
	acceptModify   = []int{http.StatusOK, http.StatusNoContent}
	acceptPassword = []int{http.StatusOK}
)

// LoadContext: все, что нужно загрузчику, кроме самого источника.
type LoadContext struct {
	Workflow   string
	Source     string // путь к основному файлу
	DataDir    string
	ResultsDir string
	Reports    *report.Writer
	Logger     *zap.Logger
	Now        func() time.Time
}

// Workflow: один сценарий миграции.
type Workflow struct {
	Name           string
	Source         string // имя файла в data dir по умолчанию
	Concurrency    int
	Accept         []int
	SuccessMessage string
	// Quota включает лимит выдач приложений по applicationAccess.
	Quota bool

	Load  func(lc LoadContext) ([]domain.Record, error)
	Build func(baseURL string, rec domain.Record) (connectors.Request, error)
}

// Порядок сценариев при полном прогоне создания и удаления.
var (
	CreationSequence = []string{
		"create-categories",
		"create-service-users",
		"create-users",
		"modify-passwords",
		"modify-users",
		"create-program-policies",
		"create-client-policies",
	}
	DeletionSequence = []string{
		"delete-users",
		"delete-program-policies",
		"delete-client-policies",
		"delete-categories",
	}
)

var registry = index(
	createCategories,
	createServiceUsers,
	createUsers,
	modifyPasswords,
	modifyUsers,
	createProgramPolicies,
	createClientPolicies,
	deleteUsers,
	deleteProgramPolicies,
	deleteClientPolicies,
	deleteCategories,
)

func index(ws ...Workflow) map[string]Workflow {
	m := make(map[string]Workflow, len(ws))
	for _, w := range ws {
		m[w.Name] = w
	}
	return m
}

// Names: все зарегистрированные сценарии по алфавиту.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Lookup ищет сценарий по имени.
func Lookup(name string) (Workflow, error) {
	w, ok := registry[name]
	if !ok {
		return Workflow{}, fmt.Errorf("%w: %q", domain.ErrUnknownWorkflow, name)
	}
	return w, nil
}

// Expand раскрывает аргументы CLI: create и delete раскрываются в полные последовательности.
func Expand(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		switch a {
		case "create":
			out = append(out, CreationSequence...)
		case "delete":
			out = append(out, DeletionSequence...)
		default:
			if _, err := Lookup(a); err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func jsonRequest(method, url string, body any) (connectors.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return connectors.Request{}, fmt.Errorf("encode payload: %w", err)
	}
	return connectors.Request{
		Method: method,
		URL:    url,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   b,
	}, nil
}
