package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/logging"
	"github.com/hpungsan/kino/internal/ops"
	"github.com/hpungsan/kino/internal/resource"
	"github.com/hpungsan/kino/internal/script"
	"github.com/hpungsan/kino/internal/tasks"
	"github.com/hpungsan/kino/internal/timeline"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "scripts", "read", "tasks", "timeline"
}

// ListPageData is the template data for the script list page.
type ListPageData struct {
	PageData
	Items      []db.Summary
	Pagination ops.Pagination
	Deleted    bool
}

// ReaderNode is one act, scene or beat laid out for reading.
type ReaderNode struct {
	ID          string
	Kind        script.Kind
	Title       string
	Depth       int
	Description template.HTML
	Audio       template.HTML
	Visual      template.HTML
	Duration    float64
}

// DetailPageData is the template data for the script reader.
type DetailPageData struct {
	PageData
	ScriptID    string
	Metadata    script.Metadata
	Stats       script.Stats
	Description template.HTML
	Nodes       []ReaderNode
	Resources   []resource.Resource
}

// TasksPageData is the template data for the task board.
type TasksPageData struct {
	PageData
	ScriptID string
	Items    []tasks.Item
	Summary  tasks.Summary
	Status   string
	Statuses []string
}

// TimelinePageData is the template data for the timeline page.
type TimelinePageData struct {
	PageData
	ScriptID string
	Timeline timeline.Timeline
	Template timeline.Template
	Markers  []MarkerAt
}

// MarkerAt is a template marker resolved against a timeline length.
type MarkerAt struct {
	Label string
	Time  float64
	Color string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer holds one template set per page, each a clone of layout.html with
// the page's "content" block parsed in.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

var funcs = template.FuncMap{
	"add":        func(a, b int) int { return a + b },
	"sub":        func(a, b int) int { return a - b },
	"formatTime": formatTime,
	"clock":      clock,
	"percent":    percent,
	"elapsed":    func(start, end float64) float64 { return end - start },
	"hasValue":   func(p *int64) bool { return p != nil },
}

// NewRenderer parses layout.html plus every other *.html in templateFS. A page
// is addressed by its file name without the extension.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) (*Renderer, error) {
	layout, err := template.New("layout").Funcs(funcs).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(templateFS, "*.html")
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == "layout.html" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[strings.TrimSuffix(file, ".html")] = t
	}
	if _, ok := templates["error"]; !ok {
		return nil, fmt.Errorf("error.html is missing")
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logging.OrNop(logger),
	}, nil
}

// isHTMX reports an htmx-initiated request, which gets fragments instead of pages.
func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

// page fills the common page fields.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if isHTMX(req) {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	kErr := errors.From(err)
	status := kErr.Status
	message := kErr.Message
	if kErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		message = "internal error"
	}

	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(kErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json") || req.URL.Query().Get("format") == "json"
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// clock formats seconds as m:ss, or h:mm:ss from an hour up.
func clock(seconds float64) string {
	total := int(math.Round(seconds))
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// percent is part/whole as a CSS percentage, 0 when whole is 0.
func percent(part, whole float64) string {
	if whole <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", part/whole*100)
}
