package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/markup"
	"github.com/hpungsan/kino/internal/ops"
	"github.com/hpungsan/kino/internal/resource"
	"github.com/hpungsan/kino/internal/script"
	"github.com/hpungsan/kino/internal/timeline"
)

// Handlers contains HTTP route handlers for the reader.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	logger   *zap.Logger
}

// HandleList handles GET /scripts.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}
	result, err := ops.ListScripts(h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.renderer.page("Scripts", "scripts"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Deleted:    input.IncludeDeleted,
	})
}

// HandleDetail handles GET /scripts/{id}: the read-only script, or its document as JSON.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("script ID is required"))
		return
	}
	out, err := ops.GetScript(r.Context(), h.db, h.cfg, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	doc := out.Script
	reg := resource.NewRegistry(doc.Resources...)
	display := func(m string) template.HTML {
		return template.HTML(markup.Display(m, reg.Get))
	}

	var nodes []ReaderNode
	var walk func([]script.DocNode, int)
	walk = func(list []script.DocNode, depth int) {
		for _, n := range list {
			rn := ReaderNode{
				ID:          n.ID,
				Kind:        n.Type,
				Title:       n.Title,
				Depth:       depth,
				Description: display(n.Description),
			}
			if n.Type == script.Beat {
				rn.Duration = h.beatSeconds(n.Duration)
				if n.Content != nil {
					rn.Audio = display(n.Content.Audio)
					rn.Visual = display(n.Content.Visual)
				}
			}
			nodes = append(nodes, rn)
			walk(n.Children, depth+1)
		}
	}
	walk(doc.Content, 0)

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData:    h.renderer.page(doc.Metadata.Title, "read"),
		ScriptID:    doc.ID,
		Metadata:    doc.Metadata,
		Stats:       out.Stats,
		Description: display(doc.Metadata.Description),
		Nodes:       nodes,
		Resources:   doc.Resources,
	})
}

func (h *Handlers) beatSeconds(d *float64) float64 {
	if d != nil {
		return *d
	}
	if h.cfg != nil && h.cfg.DefaultBeatSeconds > 0 {
		return h.cfg.DefaultBeatSeconds
	}
	return script.DefaultBeatSeconds
}

// HandleDelete handles DELETE /scripts/{id}: soft delete.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("script ID is required"))
		return
	}

	result, err := ops.DeleteScript(r.Context(), h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("script deleted", zap.String("id", id))

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/scripts")
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/scripts", http.StatusFound)
}

// HandlePurge handles POST /scripts/purge: permanently delete soft-deleted scripts.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var input ops.PurgeInput
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.PurgeScripts(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("scripts purged", zap.Int("count", result.Purged))

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/scripts?include_deleted=true", http.StatusFound)
}

// HandleTasks handles GET /scripts/{id}/tasks, optionally filtered by ?status=.
func (h *Handlers) HandleTasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status := r.URL.Query().Get("status")
	result, err := ops.ListTasks(r.Context(), h.db, h.cfg, ops.ListTasksInput{ScriptID: id, Status: status})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	h.renderer.renderPage(w, r, "tasks", TasksPageData{
		PageData: h.renderer.page("Tasks", "tasks"),
		ScriptID: id,
		Items:    result.Items,
		Summary:  result.Summary,
		Status:   status,
		Statuses: []string{string(markup.StatusTodo), string(markup.StatusInProgress), string(markup.StatusDone)},
	})
}

// HandleSetTaskStatus handles POST /scripts/{id}/tasks/{taskID} with a "status" form value.
func (h *Handlers) HandleSetTaskStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	id := r.PathValue("id")
	result, err := ops.SetTaskStatus(r.Context(), h.db, h.cfg, ops.SetTaskStatusInput{
		ScriptID: id,
		TaskID:   r.PathValue("taskID"),
		Status:   r.FormValue("status"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/scripts/"+url.PathEscape(id)+"/tasks", http.StatusSeeOther)
}

// HandleTimeline handles GET /scripts/{id}/timeline. ?template= picks the structure
// overlay drawn on the HTML page.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := ops.Timeline(r.Context(), h.db, h.cfg, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	tmplID := r.URL.Query().Get("template")
	if tmplID == "" {
		tmplID = "three-act"
	}
	tmpl, ok := timeline.TemplateByID(tmplID)
	if !ok {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("unknown template: "+tmplID))
		return
	}
	markers := make([]MarkerAt, 0, len(tmpl.Markers))
	for _, m := range tmpl.Markers {
		markers = append(markers, MarkerAt{Label: m.Label, Time: m.At(result.Timeline.DisplayTotal), Color: m.Color})
	}

	h.renderer.renderPage(w, r, "timeline", TimelinePageData{
		PageData: h.renderer.page("Timeline", "timeline"),
		ScriptID: id,
		Timeline: result.Timeline,
		Template: tmpl,
		Markers:  markers,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
