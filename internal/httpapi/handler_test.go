package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/promptkit/internal/app"
	"github.com/calvinalkan/promptkit/internal/backup"
	"github.com/calvinalkan/promptkit/internal/config"
	"github.com/calvinalkan/promptkit/internal/httpapi"
	"github.com/calvinalkan/promptkit/internal/kv"
	"github.com/calvinalkan/promptkit/internal/metrics"
	"github.com/calvinalkan/promptkit/internal/prefs"
	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/store"
	"github.com/calvinalkan/promptkit/internal/testutil"
)

type testServer struct {
	t   *testing.T
	app *app.App
	db  *kv.Memory
	h   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default(map[string]string{})
	cfg.DataDirAbs = dir
	cfg.BackupDirAbs = filepath.Join(dir, "backups")

	db := kv.NewMemory()

	a, err := app.Open(context.Background(), cfg, zerolog.Nop(), app.Options{
		Now:     testutil.NewClock().Now,
		NewID:   testutil.NewIDs("id").Next,
		DB:      db,
		Metrics: metrics.New(false),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = a.Close() })

	return &testServer{t: t, app: a, db: db, h: httpapi.New(a, zerolog.Nop())}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	s.t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func (s *testServer) create(title, content string, tags ...string) store.Record {
	s.t.Helper()

	body, err := json.Marshal(prompt.Draft{Title: title, Content: content, Tags: tags})
	require.NoError(s.t, err)

	rec := s.do(http.MethodPost, "/api/prompts", string(body))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	return decode[store.Record](s.t, rec)
}

func TestPrompts_CRUD(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	created := s.create("Greeting", "Hello there", "Mail", "mail")
	require.Equal(t, []string{"mail"}, created.Tags)

	rec := s.do(http.MethodGet, "/api/prompts/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created, decode[store.Record](t, rec))

	rec = s.do(http.MethodPatch, "/api/prompts/"+created.ID, `{"title":"Welcome"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[store.Record](t, rec)
	require.Equal(t, "Welcome", updated.Title)
	require.Equal(t, "Hello there", updated.Content)
	require.Greater(t, updated.UpdatedAt, created.UpdatedAt)

	rec = s.do(http.MethodDelete, "/api/prompts/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/prompts/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/prompts/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrompts_ListFiltersAndSorts(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	first := s.create("Review code", "Check {{file}}", "dev")
	second := s.create("Summarize", "Summarize the text", "writing")
	third := s.create("Refactor", "Refactor the code", "dev", "go")

	rec := s.do(http.MethodGet, "/api/prompts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	all := decode[[]store.Record](t, rec)
	require.Len(t, all, 3)
	require.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	rec = s.do(http.MethodGet, "/api/prompts?q=CODE", "")
	matched := decode[[]store.Record](t, rec)
	require.Len(t, matched, 2)

	rec = s.do(http.MethodGet, "/api/prompts?tag=dev&tag=GO", "")
	tagged := decode[[]store.Record](t, rec)
	require.Len(t, tagged, 1)
	require.Equal(t, third.ID, tagged[0].ID)

	rec = s.do(http.MethodGet, "/api/tags", "")
	require.Equal(t, []string{"dev", "go", "writing"}, decode[[]string](t, rec))
}

func TestPrompts_ValidationErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/prompts", `{"title":"  ","content":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[map[string]any](t, rec)
	require.NotEmpty(t, body["problems"])

	rec = s.do(http.MethodPost, "/api/prompts", `{"title":"x","content":"y","color":"red"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/prompts", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	created := s.create("Title", "Content")

	rec = s.do(http.MethodPatch, "/api/prompts/"+created.ID, `{"title":"","content":"Changed"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/prompts/"+created.ID, "")
	require.Equal(t, "Content", decode[store.Record](t, rec).Content)
}

func TestPrompts_CreateIgnoresCreatedAt(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/prompts", `{"title":"Old","content":"x","createdAt":1000}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEqual(t, int64(1000), decode[store.Record](t, rec).CreatedAt)
}

func TestRender_RemembersValues(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	created := s.create("Mail", "Hi {{name}}, about {{topic|things}}")

	rec := s.do(http.MethodPost, "/api/prompts/"+created.ID+"/render", `{"values":{"name":"Ada"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[app.Rendered](t, rec)
	require.Equal(t, "Hi Ada, about things", out.Text)
	require.Empty(t, out.Missing)
	require.Len(t, out.Placeholders, 2)

	rec = s.do(http.MethodGet, "/api/prompts/"+created.ID+"/vars", "")
	require.Equal(t, http.StatusOK, rec.Code)

	vars := decode[struct {
		Cached    map[string]string `json:"cached"`
		Effective map[string]string `json:"effective"`
	}](t, rec)
	require.Equal(t, map[string]string{"name": "Ada"}, vars.Cached)
	require.Equal(t, "Ada", vars.Effective["name"])
	require.Contains(t, vars.Effective, "today")

	rec = s.do(http.MethodPost, "/api/prompts/"+created.ID+"/render", "")
	require.Equal(t, "Hi Ada, about things", decode[app.Rendered](t, rec).Text)

	rec = s.do(http.MethodDelete, "/api/prompts/"+created.ID+"/vars", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/api/prompts/"+created.ID+"/render", `{"remember":false}`)
	out = decode[app.Rendered](t, rec)
	require.Equal(t, []string{"name"}, out.Missing)
	require.Equal(t, "Hi {{name}}, about things", out.Text)

	rec = s.do(http.MethodPost, "/api/prompts/missing/render", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportExport(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.create("Existing", "Keep me")

	doc := `{"prompts":[{"title":"New","content":"A"},{"title":"","content":"B"},{"title":"Existing","content":"Keep me"}]}`

	rec := s.do(http.MethodPost, "/api/import", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[app.ImportResult](t, rec)
	require.Equal(t, 3, res.Total)
	require.Equal(t, 2, res.Valid)
	require.Equal(t, 1, res.Created)
	require.Equal(t, 2, res.Skipped)
	require.NotEmpty(t, res.Errors)

	rec = s.do(http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), ".json")

	exported := decode[struct {
		Prompts    []store.Record `json:"prompts"`
		ExportedBy string         `json:"exportedBy"`
	}](t, rec)
	require.Len(t, exported.Prompts, 2)
	require.Equal(t, "promptkit", exported.ExportedBy)

	rec = s.do(http.MethodPost, "/api/import?mode=replace", rec.Body.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, decode[app.ImportResult](t, rec).Created)

	rec = s.do(http.MethodGet, "/api/export?format=md", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Body.String(), "# Prompt Library Export"))
	require.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
}

func TestImportExport_Errors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name   string
		target string
		body   string
		method string
	}{
		{name: "invalid json", target: "/api/import", body: "{", method: http.MethodPost},
		{name: "no prompts", target: "/api/import", body: `{"items":[]}`, method: http.MethodPost},
		{name: "bad mode", target: "/api/import?mode=overwrite", body: `{"prompts":[]}`, method: http.MethodPost},
		{name: "bad format", target: "/api/export?format=pdf", method: http.MethodGet},
	}

	for _, tt := range tests {
		rec := s.do(tt.method, tt.target, tt.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
		require.NotEmpty(t, decode[map[string]any](t, rec)["error"], tt.name)
	}
}

func TestBackups_SaveListRestore(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	created := s.create("Keep", "Safe content")

	rec := s.do(http.MethodPost, "/api/backups", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	saved := decode[struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	}](t, rec)
	require.Equal(t, 1, saved.Count)

	rec = s.do(http.MethodGet, "/api/backups", "")
	require.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(http.MethodDelete, "/api/prompts/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/api/backups/"+saved.ID+"/restore", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, decode[prompt.MergeResult](t, rec).Created)

	rec = s.do(http.MethodGet, "/api/prompts", "")
	restored := decode[[]store.Record](t, rec)
	require.Len(t, restored, 1)
	require.Equal(t, "Keep", restored[0].Title)

	rec = s.do(http.MethodPost, "/api/backups/nope/restore", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/backups/"+saved.ID+"/restore?mode=wipe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackups_Download(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.create("One", "1")

	rec := s.do(http.MethodPost, "/api/backups/download", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	path := decode[map[string]string](t, rec)["path"]
	require.Equal(t, s.app.Config.BackupDirAbs, filepath.Dir(path))

	ring, err := s.app.Backups.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, ring)
}

func TestPreferences(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, prefs.Defaults(), decode[prefs.Preferences](t, rec))

	rec = s.do(http.MethodPut, "/api/preferences", `{"autoBackupThreshold":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/preferences", `{"autoBackupEnabled":false,"autoBackupThreshold":4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[prefs.Preferences](t, rec)
	require.False(t, got.AutoBackupEnabled)
	require.Equal(t, 4, got.AutoBackupThreshold)
}

func TestPersistFailureIsInsufficientStorage(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.create("Before", "x")

	s.db.FailWrites = errors.New("disk full")

	rec := s.do(http.MethodPost, "/api/prompts", `{"title":"After","content":"y"}`)
	require.Equal(t, http.StatusInsufficientStorage, rec.Code, rec.Body.String())

	s.db.FailWrites = nil

	rec = s.do(http.MethodGet, "/api/prompts", "")
	require.Len(t, decode[[]store.Record](t, rec), 1)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.create("Counted", "x")

	rec := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `promptkit_operations_total{op="create",status="success"} 1`)
}

func TestCheckLoopback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		ok   bool
	}{
		{addr: "127.0.0.1:7878", ok: true},
		{addr: "localhost:0", ok: true},
		{addr: "[::1]:8080", ok: true},
		{addr: "0.0.0.0:7878", ok: false},
		{addr: ":7878", ok: false},
		{addr: "192.168.1.10:80", ok: false},
		{addr: "nonsense", ok: false},
	}

	for _, tt := range tests {
		err := httpapi.CheckLoopback(tt.addr)
		if tt.ok {
			require.NoError(t, err, tt.addr)
		} else {
			require.Error(t, err, tt.addr)
		}
	}

	require.ErrorIs(t, httpapi.CheckLoopback("0.0.0.0:1"), httpapi.ErrNotLoopback)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)

	go func() {
		done <- httpapi.Serve(ctx, "127.0.0.1:0", s.h, zerolog.Nop(), func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/api/tags")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRestoreOfDamagedBackup(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	ring := []backup.Backup{{ID: "bad", Timestamp: 1, Data: json.RawMessage(`{"version":2}`)}}
	raw, err := json.Marshal(ring)
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), s.db, backup.Key, raw))

	rec := s.do(http.MethodPost, "/api/backups/bad/restore", "")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
