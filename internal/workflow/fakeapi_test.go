package workflow

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/engine"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/report"
)

type call struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

func (c call) JSON(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(c.Body, &m))
	return m
}

// fakeAPI: provisioning API в памяти. id "conflict" отвечает 409.
type fakeAPI struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeAPI) handle(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, call{Method: r.Method, Path: r.URL.Path, ContentType: r.Header.Get("Content-Type"), Body: body})
		f.mu.Unlock()

		if chi.URLParam(r, "id") == "conflict" {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte("already exists"))
			return
		}
		w.WriteHeader(status)
	}
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// byPath раскладывает вызовы по пути запроса
func (f *fakeAPI) byPath() map[string]call {
	out := map[string]call{}
	for _, c := range f.Calls() {
		out[c.Path] = c
	}
	return out
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{}

	r := chi.NewRouter()
	r.Route(infra.APIPrefix, func(r chi.Router) {
		r.Post("/categories", api.handle(http.StatusCreated))
		r.Delete("/categories/{id}", api.handle(http.StatusNoContent))
		r.Post("/users", api.handle(http.StatusCreated))
		r.Post("/users/serviceusers/{id}", api.handle(http.StatusNoContent))
		r.Put("/users/{id}", api.handle(http.StatusNoContent))
		r.Put("/users/{id}/password", api.handle(http.StatusOK))
		r.Delete("/users/{id}", api.handle(http.StatusNoContent))
		r.Post("/policies/programs", api.handle(http.StatusCreated))
		r.Delete("/policies/programs/{id}", api.handle(http.StatusNoContent))
		r.Post("/policies/mandants", api.handle(http.StatusCreated))
		r.Delete("/policies/mandants/{id}", api.handle(http.StatusNoContent))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

type harness struct {
	api     *fakeAPI
	runner  *Runner
	cfg     *infra.Config
	dataDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api, srv := newFakeAPI(t)

	dir := t.TempDir()
	cfg := &infra.Config{
		Data:  infra.DataConfig{Dir: dir, ResultsDir: filepath.Join(dir, "results")},
		Quota: infra.QuotaConfig{LimitPerApplication: 70},
	}

	r := NewRunner(cfg, srv.URL, connectors.NewHTTPAdapter(srv.Client(), 5*time.Second),
		engine.NewMetrics(nil), report.NewWriter(zap.NewNop(), nil), zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }
	r.newRunID = func() string { return "run-test" }

	return &harness{api: api, runner: r, cfg: cfg, dataDir: dir}
}

func (h *harness) writeJSON(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.dataDir, name), []byte(body), 0o600))
}

func (h *harness) writeSheet(t *testing.T, name string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(filepath.Join(h.dataDir, name)))
}

func (h *harness) result(name string) string {
	return filepath.Join(h.cfg.Data.ResultsDir, name)
}
