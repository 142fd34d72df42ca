package mcp

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/logging"
)

// handlerMethod is a method expression on *Handlers, e.g. (*Handlers).HandleAddNode.
type handlerMethod func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

type toolEntry struct {
	def  mcp.Tool
	call handlerMethod
}

// toolTable is every tool kino serves, grouped by type in listing order.
var toolTable = []toolEntry{
	{scriptCreateToolDef, (*Handlers).HandleCreateScript},
	{scriptGetToolDef, (*Handlers).HandleGetScript},
	{scriptListToolDef, (*Handlers).HandleListScripts},
	{scriptDeleteToolDef, (*Handlers).HandleDeleteScript},
	{scriptPurgeToolDef, (*Handlers).HandlePurgeScripts},
	{scriptDuplicateToolDef, (*Handlers).HandleDuplicateScript},
	{scriptStatsToolDef, (*Handlers).HandleStats},
	{scriptExportToolDef, (*Handlers).HandleExport},
	{scriptImportToolDef, (*Handlers).HandleImport},

	{nodeAddToolDef, (*Handlers).HandleAddNode},
	{nodeDeleteToolDef, (*Handlers).HandleDeleteNode},
	{nodeMoveToolDef, (*Handlers).HandleMoveNode},
	{nodeUpdateToolDef, (*Handlers).HandleUpdateNode},

	{fieldSetToolDef, (*Handlers).HandleSetField},
	{fieldTypeToolDef, (*Handlers).HandleTypeIntoField},
	{fieldMarkdownToolDef, (*Handlers).HandleImportMarkdown},

	{resourceAddToolDef, (*Handlers).HandleAddResource},
	{resourceUpdateToolDef, (*Handlers).HandleUpdateResource},
	{resourceDeleteToolDef, (*Handlers).HandleDeleteResource},
	{resourceReferencesToolDef, (*Handlers).HandleReferences},

	{taskListToolDef, (*Handlers).HandleListTasks},
	{taskSetStatusToolDef, (*Handlers).HandleSetTaskStatus},

	{timelineGetToolDef, (*Handlers).HandleTimeline},

	{versionSaveToolDef, (*Handlers).HandleSaveVersion},
	{versionListToolDef, (*Handlers).HandleListVersions},
	{versionRestoreToolDef, (*Handlers).HandleRestoreVersion},
}

// KnownTypes are the tool name prefixes accepted by disabled_types.
var KnownTypes = toolTypes()

func toolTypes() []string {
	var types []string
	for _, t := range toolTable {
		if typ := GetTypeForTool(t.def.Name); !slices.Contains(types, typ) {
			types = append(types, typ)
		}
	}
	return types
}

// AllToolNames returns every tool name in listing order.
func AllToolNames() []string {
	names := make([]string, len(toolTable))
	for i, t := range toolTable {
		names[i] = t.def.Name
	}
	return names
}

// ValidateDisabledTools returns the names that are not tools.
func ValidateDisabledTools(names []string) []string {
	return unknownNames(names, AllToolNames())
}

// ValidateDisabledTypes returns the names that are not tool types.
func ValidateDisabledTypes(names []string) []string {
	return unknownNames(names, KnownTypes)
}

func unknownNames(names, known []string) []string {
	unknown := []string{}
	for _, n := range names {
		if !slices.Contains(known, n) {
			unknown = append(unknown, n)
		}
	}
	return unknown
}

// GetTypeForTool returns the prefix before the first underscore: "node_move" → "node".
func GetTypeForTool(toolName string) string {
	typ, _, ok := strings.Cut(toolName, "_")
	if !ok || typ == "" {
		return ""
	}
	return typ
}

// ExpandTypesToTools returns the names of all tools whose type is in types.
func ExpandTypesToTools(types []string) []string {
	var names []string
	for _, t := range toolTable {
		if slices.Contains(types, GetTypeForTool(t.def.Name)) {
			names = append(names, t.def.Name)
		}
	}
	return names
}

// enabledTools drops cfg.DisabledTools and every tool of cfg.DisabledTypes.
func enabledTools(cfg *config.Config) []toolEntry {
	off := append(ExpandTypesToTools(cfg.DisabledTypes), cfg.DisabledTools...)
	var out []toolEntry
	for _, t := range toolTable {
		if !slices.Contains(off, t.def.Name) {
			out = append(out, t)
		}
	}
	return out
}

// NewServer builds the MCP server with every enabled tool registered. A panic in
// a handler becomes an error result instead of taking the stdio session down.
func NewServer(db *sql.DB, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	logger = logging.OrNop(logger)
	s := server.NewMCPServer("kino", version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg)
	enabled := enabledTools(cfg)
	for _, t := range enabled {
		s.AddTool(t.def, bind(h, t, logger))
	}
	logger.Debug("mcp tools registered", zap.Int("enabled", len(enabled)), zap.Int("total", len(toolTable)))
	return s
}

// bind turns a method expression into a handler on h that logs each call.
func bind(h *Handlers, t toolEntry, logger *zap.Logger) server.ToolHandlerFunc {
	name := t.def.Name
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := t.call(h, ctx, req)
		fields := []zap.Field{zap.String("tool", name), zap.Duration("took", time.Since(start))}
		switch {
		case err != nil:
			logger.Error("tool failed", append(fields, zap.Error(err))...)
		case res != nil && res.IsError:
			logger.Debug("tool returned error", fields...)
		default:
			logger.Debug("tool ok", fields...)
		}
		return res, err
	}
}

// Run serves the tools over stdio until stdin closes.
func Run(db *sql.DB, cfg *config.Config, logger *zap.Logger, version string) error {
	return server.ServeStdio(NewServer(db, cfg, logger, version))
}
