package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/logging"
	"github.com/hpungsan/kino/internal/ops"
)

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	renderer, err := NewRenderer(templateSub, "test", logging.Nop())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	return &Handlers{
		db:       database,
		cfg:      cfg,
		renderer: renderer,
		logger:   zap.NewNop(),
	}
}

type seeded struct {
	id, scene, beat, resource string
}

// seedScript stores a skeleton script whose beat mentions a character and whose
// scene carries a two-item checklist.
func seedScript(t *testing.T, h *Handlers, title string) seeded {
	t.Helper()
	ctx := context.Background()
	created, err := ops.CreateScript(ctx, h.db, h.cfg, ops.CreateScriptInput{Title: title, Skeleton: true})
	if err != nil {
		t.Fatalf("seed script %q: %v", title, err)
	}
	s := seeded{id: created.Script.ID}
	scene := created.Script.Content[0].Children[0]
	s.scene = scene.ID
	s.beat = scene.Children[0].ID

	res, err := ops.AddResource(ctx, h.db, h.cfg, ops.AddResourceInput{ScriptID: s.id, Type: "character", Value: "John"})
	if err != nil {
		t.Fatalf("seed resource: %v", err)
	}
	s.resource = res.Resource.ID

	if _, err := ops.TypeIntoField(ctx, h.db, h.cfg, ops.TypeIntoFieldInput{
		ScriptID: s.id, Owner: s.beat, Field: "audio", Keys: "Meet @Jo{Enter}",
	}); err != nil {
		t.Fatalf("seed audio: %v", err)
	}
	if _, err := ops.ImportMarkdown(ctx, h.db, h.cfg, ops.ImportMarkdownInput{
		ScriptID: s.id, Owner: s.scene, Field: "description",
		Markdown: "- [ ] scout diner\n- [x] cast John\n",
	}); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
	return s
}

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	h := setupTest(t)
	seedScript(t, h, "Night Owl")

	req := httptest.NewRequest("GET", "/scripts", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Night Owl") {
		t.Error("expected script title in response")
	}
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("expected full layout")
	}
}

func TestHandleList_Empty(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/scripts", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No scripts found") {
		t.Error("expected empty state message")
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)
	seedScript(t, h, "Night Owl")

	req := httptest.NewRequest("GET", "/scripts", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not contain full layout")
	}
	if !strings.Contains(body, "Night Owl") {
		t.Error("expected script title in fragment")
	}
}

func TestHandleList_JSON(t *testing.T) {
	h := setupTest(t)
	seedScript(t, h, "One")
	seedScript(t, h, "Two")

	req := httptest.NewRequest("GET", "/scripts?format=json&limit=1", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ops.ListOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Items) != 1 || !resp.Pagination.HasMore || resp.Pagination.Total != 2 {
		t.Errorf("got %d items, pagination %+v", len(resp.Items), resp.Pagination)
	}
}

func TestHandleList_DeletedScriptsNotLinked(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Gone")
	if _, err := ops.DeleteScript(context.Background(), h.db, s.id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	req := httptest.NewRequest("GET", "/scripts?include_deleted=true", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `class="deleted"`) {
		t.Error("expected deleted row")
	}
	if strings.Contains(body, `href="/scripts/`+s.id+`"`) {
		t.Error("deleted script should not link to its reader")
	}
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")

	req := httptest.NewRequest("GET", "/scripts/"+s.id, nil)
	req.SetPathValue("id", s.id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Night Owl", "Act I", "Scene 1", `data-id="` + s.resource + `"`, "scout diner", "Wiki"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in detail page", want)
		}
	}
	if strings.Contains(body, "resource-chip--missing") {
		t.Error("live chip rendered as missing")
	}
}

func TestHandleDetail_MissingChip(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")
	if _, err := ops.DeleteResource(context.Background(), h.db, h.cfg, ops.ResourceRef{ScriptID: s.id, ID: s.resource}); err != nil {
		t.Fatalf("delete resource: %v", err)
	}

	req := httptest.NewRequest("GET", "/scripts/"+s.id, nil)
	req.SetPathValue("id", s.id)
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if !strings.Contains(rec.Body.String(), "resource-chip--missing") {
		t.Error("expected dangling chip to render as missing")
	}
}

func TestHandleDetail_JSON(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")

	req := httptest.NewRequest("GET", "/scripts/"+s.id, nil)
	req.SetPathValue("id", s.id)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ops.ScriptOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp.Script.ID != s.id || resp.Stats.Resources != 1 {
		t.Errorf("got id %q, %d resources", resp.Script.ID, resp.Stats.Resources)
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/scripts/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_EmptyID(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/scripts/", nil)
	req.SetPathValue("id", "")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- HandleDelete ---

func TestHandleDelete(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		status   int
		redirect string // HX-Redirect or Location
	}{
		{"htmx", map[string]string{"HX-Request": "true"}, http.StatusOK, "/scripts"},
		{"json", map[string]string{"Accept": "application/json"}, http.StatusOK, ""},
		{"mixed accept", map[string]string{"Accept": "text/html, application/json"}, http.StatusOK, ""},
		{"browser", nil, http.StatusFound, "/scripts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			s := seedScript(t, h, "Doomed")

			req := httptest.NewRequest("DELETE", "/scripts/"+s.id, nil)
			req.SetPathValue("id", s.id)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.HandleDelete(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			got := rec.Header().Get("HX-Redirect")
			if got == "" {
				got = rec.Header().Get("Location")
			}
			if got != tt.redirect {
				t.Errorf("redirect = %q, want %q", got, tt.redirect)
			}
			if tt.redirect == "" {
				var resp ops.DeleteOutput
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode JSON: %v", err)
				}
				if !resp.Deleted || resp.ID != s.id {
					t.Errorf("resp = %+v", resp)
				}
			}
		})
	}
}

func TestHandleDelete_NotFound(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("DELETE", "/scripts/NONEXISTENT", nil)
	req.SetPathValue("id", "NONEXISTENT")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	errObj, _ := resp["error"].(map[string]any)
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("error.code = %v, want NOT_FOUND", errObj["code"])
	}
}

// --- HandlePurge ---

func purgeRequest(form url.Values, headers map[string]string) *http.Request {
	req := httptest.NewRequest("POST", "/scripts/purge", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestHandlePurge_Rejects(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing confirm", url.Values{}},
		{"confirm false", url.Values{"confirm": {"false"}}},
		{"bad days", url.Values{"confirm": {"true"}, "older_than_days": {"notanumber"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			rec := httptest.NewRecorder()
			h.HandlePurge(rec, purgeRequest(tt.form, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandlePurge_DefaultRedirect(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandlePurge(rec, purgeRequest(url.Values{"confirm": {"true"}}, nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/scripts?include_deleted=true" {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandlePurge_JSONResponse(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Purge Me")
	if _, err := ops.DeleteScript(context.Background(), h.db, s.id); err != nil {
		t.Fatalf("delete for purge setup: %v", err)
	}

	rec := httptest.NewRecorder()
	h.HandlePurge(rec, purgeRequest(url.Values{"confirm": {"true"}}, map[string]string{"Accept": "application/json"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ops.PurgeOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp.Purged != 1 {
		t.Errorf("purged = %d, want 1", resp.Purged)
	}
}

func TestHandlePurge_HtmxResponse(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandlePurge(rec, purgeRequest(url.Values{"confirm": {"true"}}, map[string]string{"HX-Request": "true"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "purge-result") {
		t.Error("expected purge-result div in htmx response")
	}
}

// --- Tasks ---

func TestHandleTasks(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")

	req := httptest.NewRequest("GET", "/scripts/"+s.id+"/tasks", nil)
	req.SetPathValue("id", s.id)
	rec := httptest.NewRecorder()
	h.HandleTasks(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"scout diner", "cast John", "1 of 2 done", "Act I &gt; Scene 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in tasks page", want)
		}
	}
}

func TestHandleTasks_Filter(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")

	req := httptest.NewRequest("GET", "/scripts/"+s.id+"/tasks?status=done&format=json", nil)
	req.SetPathValue("id", s.id)
	rec := httptest.NewRecorder()
	h.HandleTasks(rec, req)

	var resp ops.ListTasksOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Text != "cast John" {
		t.Errorf("items = %+v", resp.Items)
	}
	if resp.Summary.Total != 2 {
		t.Errorf("summary.total = %d, want 2 regardless of filter", resp.Summary.Total)
	}
}

func TestHandleSetTaskStatus(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")
	list, err := ops.ListTasks(context.Background(), h.db, h.cfg, ops.ListTasksInput{ScriptID: s.id})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	taskID := list.Items[0].ID

	post := func(taskID, status string, headers map[string]string) *httptest.ResponseRecorder {
		form := url.Values{"status": {status}}
		req := httptest.NewRequest("POST", "/scripts/"+s.id+"/tasks/"+taskID, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.SetPathValue("id", s.id)
		req.SetPathValue("taskID", taskID)
		rec := httptest.NewRecorder()
		h.HandleSetTaskStatus(rec, req)
		return rec
	}

	rec := post(taskID, "in-progress", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/scripts/"+s.id+"/tasks" {
		t.Errorf("Location = %q", loc)
	}

	rec = post(taskID, "done", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ops.SetTaskStatusOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp.Task.Status != "done" {
		t.Errorf("status = %q, want done", resp.Task.Status)
	}

	if rec := post(s.scene+"-description-9", "done", nil); rec.Code != http.StatusNotFound {
		t.Errorf("stale task id: status = %d, want 404", rec.Code)
	}
	if rec := post(taskID, "blocked", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status: status = %d, want 400", rec.Code)
	}
}

// --- Timeline ---

func TestHandleTimeline(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")

	get := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/scripts/"+s.id+"/timeline"+query, nil)
		req.SetPathValue("id", s.id)
		rec := httptest.NewRecorder()
		h.HandleTimeline(rec, req)
		return rec
	}

	rec := get("?format=json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ops.TimelineOutput
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if resp.Timeline.DisplayTotal != h.cfg.TimelineMinSeconds {
		t.Errorf("display total = %v, want %v", resp.Timeline.DisplayTotal, h.cfg.TimelineMinSeconds)
	}
	if len(resp.Timeline.Spans) != 3 {
		t.Errorf("spans = %d, want 3", len(resp.Timeline.Spans))
	}

	rec = get("")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `class="marker"`) || !strings.Contains(body, "Scene 1") {
		t.Error("expected markers and spans on the timeline page")
	}

	if rec := get("?template=nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown template: status = %d, want 400", rec.Code)
	}
}

// --- Error rendering ---

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
		layout  bool
	}{
		{"htmx fragment", map[string]string{"HX-Request": "true"}, "error-message", false},
		{"json", map[string]string{"Accept": "application/json"}, `"status":404`, false},
		{"full page", nil, "Error 404", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTest(t)
			req := httptest.NewRequest("GET", "/scripts/NONEXISTENT", nil)
			req.SetPathValue("id", "NONEXISTENT")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.HandleDetail(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q: %s", tt.want, body)
			}
			if got := strings.Contains(body, "<!DOCTYPE html>"); got != tt.layout {
				t.Errorf("layout present = %v, want %v", got, tt.layout)
			}
		})
	}
}

// --- Routing ---

func TestRoutes(t *testing.T) {
	h := setupTest(t)
	s := seedScript(t, h, "Night Owl")
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}
	handler := securityHeaders(h.routes(staticSub))

	tests := []struct {
		method, path string
		status       int
	}{
		{"GET", "/", http.StatusFound},
		{"GET", "/scripts", http.StatusOK},
		{"GET", "/scripts/" + s.id, http.StatusOK},
		{"GET", "/scripts/" + s.id + "/tasks", http.StatusOK},
		{"GET", "/scripts/" + s.id + "/timeline", http.StatusOK},
		{"GET", "/static/kino.css", http.StatusOK},
		{"PUT", "/scripts/" + s.id, http.StatusMethodNotAllowed},
		{"GET", "/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if rec.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("missing security headers")
			}
		})
	}
}

func TestNewRenderer(t *testing.T) {
	layout := `{{define "layout"}}<main>{{template "content" .}}</main>{{end}}`
	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{"pages discovered", fstest.MapFS{
			"layout.html": {Data: []byte(layout)},
			"error.html":  {Data: []byte(`{{define "content"}}err{{end}}`)},
			"extra.html":  {Data: []byte(`{{define "content"}}{{clock 75}}{{end}}`)},
		}, ""},
		{"no layout", fstest.MapFS{
			"error.html": {Data: []byte(`{{define "content"}}err{{end}}`)},
		}, "parse layout"},
		{"no error page", fstest.MapFS{
			"layout.html": {Data: []byte(layout)},
		}, "error.html"},
		{"broken page", fstest.MapFS{
			"layout.html": {Data: []byte(layout)},
			"error.html":  {Data: []byte(`{{define "content"}}{{nope}}{{end}}`)},
		}, "parse error.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRenderer(tt.files, "test", nil)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			rec := httptest.NewRecorder()
			r.renderPage(rec, httptest.NewRequest("GET", "/", nil), "extra", nil)
			if got := rec.Body.String(); got != "<main>1:15</main>" {
				t.Errorf("body = %q", got)
			}
		})
	}
}

func TestRecoverPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	handler := chain(boom, recoverPanics(zap.New(core)), securityHeaders)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/scripts", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("outer middleware did not run")
	}
	if logs.FilterMessage("handler panic").Len() != 1 {
		t.Errorf("panic not logged: %v", logs.All())
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	h := setupTest(t)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: h.routes(staticSub)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, logging.Nop()) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(shutdownGrace + time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// --- Helper functions ---

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query    string
		name     string
		def      int
		expected int
	}{
		{"", "limit", 20, 20},
		{"limit=50", "limit", 20, 50},
		{"limit=bad", "limit", 20, 20},
		{"offset=10", "offset", 0, 10},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		got := parseIntParam(req, tt.name, tt.def)
		if got != tt.expected {
			t.Errorf("parseIntParam(%q, %q, %d) = %d, want %d", tt.query, tt.name, tt.def, got, tt.expected)
		}
	}
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		query    string
		expected bool
	}{
		{"", false},
		{"include_deleted=true", true},
		{"include_deleted=1", true},
		{"include_deleted=yes", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		if got := parseBoolParam(req, "include_deleted"); got != tt.expected {
			t.Errorf("parseBoolParam(%q) = %v, want %v", tt.query, got, tt.expected)
		}
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{15, "0:15"},
		{90.4, "1:30"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := clock(tt.seconds); got != tt.want {
			t.Errorf("clock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := percent(15, 60); got != "25.00%" {
		t.Errorf("percent(15, 60) = %q", got)
	}
	if got := percent(5, 0); got != "0%" {
		t.Errorf("percent(5, 0) = %q", got)
	}
}
