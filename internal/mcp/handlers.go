package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/errors"
	"github.com/hpungsan/kino/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// ScriptRef addresses one script.
type ScriptRef struct {
	ScriptID string `json:"script_id"`
}

// CreateRequest represents the arguments for script_create.
type CreateRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Skeleton    bool   `json:"skeleton,omitempty"`
}

// ListRequest represents the arguments for script_list.
type ListRequest struct {
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// PurgeRequest represents the arguments for script_purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// ExportRequest represents the arguments for script_export.
type ExportRequest struct {
	ScriptID string `json:"script_id"`
	Path     string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for script_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// NodeAddRequest represents the arguments for node_add.
type NodeAddRequest struct {
	ScriptID string `json:"script_id"`
	ParentID string `json:"parent_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Title    string `json:"title,omitempty"`
}

// NodeRequest represents the arguments for node_delete.
type NodeRequest struct {
	ScriptID string `json:"script_id"`
	NodeID   string `json:"node_id"`
}

// NodeMoveRequest represents the arguments for node_move.
type NodeMoveRequest struct {
	ScriptID string `json:"script_id"`
	NodeID   string `json:"node_id"`
	Before   string `json:"before,omitempty"`
	Into     string `json:"into,omitempty"`
}

// NodeUpdateRequest represents the arguments for node_update.
type NodeUpdateRequest struct {
	ScriptID       string   `json:"script_id"`
	NodeID         string   `json:"node_id"`
	Title          *string  `json:"title,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	ToggleCollapse bool     `json:"toggle_collapse,omitempty"`
}

// FieldRequest represents the arguments shared by the field tools.
type FieldRequest struct {
	ScriptID string `json:"script_id"`
	Owner    string `json:"owner"`
	Field    string `json:"field"`
	Markup   string `json:"markup,omitempty"`
	Keys     string `json:"keys,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	Append   bool   `json:"append,omitempty"`
}

// ResourceRequest represents the arguments for resource_add and resource_update.
// Pointers distinguish omitted fields on update.
type ResourceRequest struct {
	ScriptID    string   `json:"script_id"`
	ID          string   `json:"id,omitempty"`
	Type        *string  `json:"type,omitempty"`
	Value       *string  `json:"value,omitempty"`
	Label       *string  `json:"label,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Icon        *string  `json:"icon,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TaskRequest represents the arguments for task_list and task_set_status.
type TaskRequest struct {
	ScriptID string `json:"script_id"`
	TaskID   string `json:"task_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// VersionRequest represents the arguments for the version tools.
type VersionRequest struct {
	ScriptID  string `json:"script_id"`
	Label     string `json:"label,omitempty"`
	VersionID string `json:"version_id,omitempty"`
}

// call decodes the request into T and runs fn, mapping both failure kinds onto
// error results.
func call[T any](req mcp.CallToolRequest, fn func(T) (any, error)) (*mcp.CallToolResult, error) {
	input, err := decodeArgs[T](req)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := fn(input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Handler implementations

// HandleCreateScript handles the script_create tool call.
func (h *Handlers) HandleCreateScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in CreateRequest) (any, error) {
		return ops.CreateScript(ctx, h.db, h.cfg, ops.CreateScriptInput{
			ID:          in.ID,
			Title:       in.Title,
			Author:      in.Author,
			Description: in.Description,
			Skeleton:    in.Skeleton,
		})
	})
}

// HandleGetScript handles the script_get tool call.
func (h *Handlers) HandleGetScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ScriptRef) (any, error) {
		return ops.GetScript(ctx, h.db, h.cfg, in.ScriptID)
	})
}

// HandleListScripts handles the script_list tool call.
func (h *Handlers) HandleListScripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ListRequest) (any, error) {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("list")
		}
		return ops.ListScripts(h.db, ops.ListInput{
			Limit:          in.Limit,
			Offset:         in.Offset,
			IncludeDeleted: in.IncludeDeleted,
		})
	})
}

// HandleDeleteScript handles the script_delete tool call.
func (h *Handlers) HandleDeleteScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ScriptRef) (any, error) {
		return ops.DeleteScript(ctx, h.db, in.ScriptID)
	})
}

// HandlePurgeScripts handles the script_purge tool call.
func (h *Handlers) HandlePurgeScripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in PurgeRequest) (any, error) {
		return ops.PurgeScripts(ctx, h.db, ops.PurgeInput{OlderThanDays: in.OlderThanDays})
	})
}

// HandleDuplicateScript handles the script_duplicate tool call.
func (h *Handlers) HandleDuplicateScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ScriptRef) (any, error) {
		return ops.DuplicateScript(ctx, h.db, h.cfg, in.ScriptID)
	})
}

// HandleStats handles the script_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ScriptRef) (any, error) {
		return ops.Stats(ctx, h.db, h.cfg, in.ScriptID)
	})
}

// HandleExport handles the script_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ExportRequest) (any, error) {
		return ops.ExportScript(ctx, h.db, h.cfg, ops.ExportInput{ScriptID: in.ScriptID, Path: in.Path})
	})
}

// HandleImport handles the script_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ImportRequest) (any, error) {
		return ops.ImportScript(ctx, h.db, h.cfg, ops.ImportInput{Path: in.Path, Mode: ops.ImportMode(in.Mode)})
	})
}

// HandleAddNode handles the node_add tool call.
func (h *Handlers) HandleAddNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in NodeAddRequest) (any, error) {
		return ops.AddNode(ctx, h.db, h.cfg, ops.AddNodeInput{
			ScriptID: in.ScriptID,
			ParentID: in.ParentID,
			Kind:     in.Kind,
			Title:    in.Title,
		})
	})
}

// HandleDeleteNode handles the node_delete tool call.
func (h *Handlers) HandleDeleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in NodeRequest) (any, error) {
		return ops.DeleteNode(ctx, h.db, h.cfg, ops.NodeRef{ScriptID: in.ScriptID, NodeID: in.NodeID})
	})
}

// HandleMoveNode handles the node_move tool call.
func (h *Handlers) HandleMoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in NodeMoveRequest) (any, error) {
		return ops.MoveNode(ctx, h.db, h.cfg, ops.MoveNodeInput{
			ScriptID: in.ScriptID,
			NodeID:   in.NodeID,
			Before:   in.Before,
			Into:     in.Into,
		})
	})
}

// HandleUpdateNode handles the node_update tool call. The collapse toggle runs
// first, so the node returned after a title or duration change carries it.
func (h *Handlers) HandleUpdateNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in NodeUpdateRequest) (any, error) {
		if in.Title == nil && in.Duration == nil && !in.ToggleCollapse {
			return nil, errors.NewInvalidRequest("one of title, duration or toggle_collapse is required")
		}
		ref := ops.NodeRef{ScriptID: in.ScriptID, NodeID: in.NodeID}
		var result any
		if in.ToggleCollapse {
			toggled, err := ops.ToggleCollapse(ctx, h.db, h.cfg, ref)
			if err != nil {
				return nil, err
			}
			result = toggled
		}
		if in.Title != nil {
			out, err := ops.SetTitle(ctx, h.db, h.cfg, ops.SetTitleInput{ScriptID: in.ScriptID, NodeID: in.NodeID, Title: *in.Title})
			if err != nil {
				return nil, err
			}
			result = out
		}
		if in.Duration != nil {
			out, err := ops.SetDuration(ctx, h.db, h.cfg, ops.SetDurationInput{ScriptID: in.ScriptID, NodeID: in.NodeID, Seconds: *in.Duration})
			if err != nil {
				return nil, err
			}
			result = out
		}
		return result, nil
	})
}

// HandleSetField handles the field_set tool call.
func (h *Handlers) HandleSetField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in FieldRequest) (any, error) {
		return ops.SetField(ctx, h.db, h.cfg, ops.SetFieldInput{
			ScriptID: in.ScriptID,
			Owner:    in.Owner,
			Field:    in.Field,
			Markup:   in.Markup,
		})
	})
}

// HandleTypeIntoField handles the field_type tool call.
func (h *Handlers) HandleTypeIntoField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in FieldRequest) (any, error) {
		return ops.TypeIntoField(ctx, h.db, h.cfg, ops.TypeIntoFieldInput{
			ScriptID: in.ScriptID,
			Owner:    in.Owner,
			Field:    in.Field,
			Keys:     in.Keys,
		})
	})
}

// HandleImportMarkdown handles the field_markdown tool call.
func (h *Handlers) HandleImportMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in FieldRequest) (any, error) {
		return ops.ImportMarkdown(ctx, h.db, h.cfg, ops.ImportMarkdownInput{
			ScriptID: in.ScriptID,
			Owner:    in.Owner,
			Field:    in.Field,
			Markdown: in.Markdown,
			Append:   in.Append,
		})
	})
}

// HandleAddResource handles the resource_add tool call.
func (h *Handlers) HandleAddResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ResourceRequest) (any, error) {
		return ops.AddResource(ctx, h.db, h.cfg, ops.AddResourceInput{
			ScriptID:    in.ScriptID,
			ID:          in.ID,
			Type:        deref(in.Type),
			Value:       deref(in.Value),
			Label:       deref(in.Label),
			Color:       deref(in.Color),
			Icon:        deref(in.Icon),
			Description: deref(in.Description),
			Tags:        in.Tags,
		})
	})
}

// HandleUpdateResource handles the resource_update tool call.
func (h *Handlers) HandleUpdateResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ResourceRequest) (any, error) {
		return ops.UpdateResource(ctx, h.db, h.cfg, ops.UpdateResourceInput{
			ScriptID:    in.ScriptID,
			ID:          in.ID,
			Type:        in.Type,
			Value:       in.Value,
			Label:       in.Label,
			Color:       in.Color,
			Icon:        in.Icon,
			Description: in.Description,
			Tags:        in.Tags,
		})
	})
}

// HandleDeleteResource handles the resource_delete tool call.
func (h *Handlers) HandleDeleteResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ResourceRequest) (any, error) {
		return ops.DeleteResource(ctx, h.db, h.cfg, ops.ResourceRef{ScriptID: in.ScriptID, ID: in.ID})
	})
}

// HandleReferences handles the resource_references tool call.
func (h *Handlers) HandleReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ResourceRequest) (any, error) {
		return ops.References(ctx, h.db, h.cfg, ops.ReferencesInput{ScriptID: in.ScriptID, ResourceID: in.ID})
	})
}

// HandleListTasks handles the task_list tool call.
func (h *Handlers) HandleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in TaskRequest) (any, error) {
		return ops.ListTasks(ctx, h.db, h.cfg, ops.ListTasksInput{ScriptID: in.ScriptID, Status: in.Status})
	})
}

// HandleSetTaskStatus handles the task_set_status tool call.
func (h *Handlers) HandleSetTaskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in TaskRequest) (any, error) {
		return ops.SetTaskStatus(ctx, h.db, h.cfg, ops.SetTaskStatusInput{
			ScriptID: in.ScriptID,
			TaskID:   in.TaskID,
			Status:   in.Status,
		})
	})
}

// HandleTimeline handles the timeline_get tool call.
func (h *Handlers) HandleTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in ScriptRef) (any, error) {
		return ops.Timeline(ctx, h.db, h.cfg, in.ScriptID)
	})
}

// HandleSaveVersion handles the version_save tool call.
func (h *Handlers) HandleSaveVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in VersionRequest) (any, error) {
		return ops.SaveVersion(ctx, h.db, h.cfg, ops.SaveVersionInput{ScriptID: in.ScriptID, Label: in.Label})
	})
}

// HandleListVersions handles the version_list tool call.
func (h *Handlers) HandleListVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in VersionRequest) (any, error) {
		return ops.ListVersions(ctx, h.db, in.ScriptID)
	})
}

// HandleRestoreVersion handles the version_restore tool call.
func (h *Handlers) HandleRestoreVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(req, func(in VersionRequest) (any, error) {
		return ops.RestoreVersion(ctx, h.db, h.cfg, ops.RestoreVersionInput{ScriptID: in.ScriptID, VersionID: in.VersionID})
	})
}

// Result helpers

// errorResult turns err into an IsError result carrying {"error": {code, message,
// status, details}}. INTERNAL errors keep their message out of the payload since
// it can carry file paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	kinoErr := errors.From(err)
	body := map[string]any{
		"code":    kinoErr.Code,
		"message": err.Error(),
		"status":  kinoErr.Status,
	}
	switch {
	case kinoErr.Code == errors.ErrInternal:
		body["message"] = "an internal error occurred"
	case err == error(kinoErr):
		body["message"] = kinoErr.Message
	}
	if kinoErr.Code != errors.ErrInternal && kinoErr.Details != nil {
		body["details"] = kinoErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": body})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
