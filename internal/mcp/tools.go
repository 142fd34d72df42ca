package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Argument names match the json tags of the request types in
// handlers.go.

func scriptIDArg() mcp.ToolOption {
	return mcp.WithString("script_id", mcp.Required(), mcp.Description("Script id"))
}

func fieldArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("owner", mcp.Required(),
			mcp.Description(`Node id, resource id, or "metadata" for the script description`)),
		mcp.WithString("field", mcp.Required(),
			mcp.Description("Rich-text field"), mcp.Enum("description", "audio", "visual")),
	}
}

func tool(name, desc string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(desc)}, opts...)...)
}

var scriptCreateToolDef = tool("script_create",
	"Create a new script. Starts with an initial \"Version 1\" in its history.",
	mcp.WithString("title", mcp.Required(), mcp.Description("Script title")),
	mcp.WithString("id", mcp.Description("Optional script id; minted when omitted")),
	mcp.WithString("author", mcp.Description("Author name")),
	mcp.WithString("description", mcp.Description("Script description markup")),
	mcp.WithBoolean("skeleton", mcp.Description("Seed one act, scene and beat")),
)

var scriptGetToolDef = tool("script_get",
	"Get the full nested document of a script, with its stats.",
	scriptIDArg(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var scriptListToolDef = tool("script_list",
	"List scripts, most recently updated first.",
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results to skip")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted scripts")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var scriptDeleteToolDef = tool("script_delete",
	"Soft-delete a script. script_purge removes it permanently.",
	scriptIDArg(),
	mcp.WithDestructiveHintAnnotation(true),
)

var scriptPurgeToolDef = tool("script_purge",
	"Permanently delete soft-deleted scripts and their versions.",
	mcp.WithNumber("older_than_days", mcp.Description("Only purge scripts deleted more than N days ago")),
	mcp.WithDestructiveHintAnnotation(true),
)

var scriptDuplicateToolDef = tool("script_duplicate",
	"Copy a script under a new id with \" (Copy)\" appended to its title and a fresh history.",
	scriptIDArg(),
)

var scriptStatsToolDef = tool("script_stats",
	"Word count, resource count, total duration, node count and task progress.",
	scriptIDArg(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var scriptExportToolDef = tool("script_export",
	"Export a script, history included, to a .kinoscript file.",
	scriptIDArg(),
	mcp.WithString("path", mcp.Description("Target path; defaults to the exports directory")),
)

var scriptImportToolDef = tool("script_import",
	"Import a .kinoscript document, or a .json/.yaml draft from a generator.",
	mcp.WithString("path", mcp.Required(), mcp.Description("Source path")),
	mcp.WithString("mode", mcp.Description("What to do when the id exists"), mcp.Enum("error", "replace", "rename")),
)

var nodeAddToolDef = tool("node_add",
	"Append an act (no parent), a scene (under an act) or a beat (under a scene).",
	scriptIDArg(),
	mcp.WithString("parent_id", mcp.Description("Parent node id; omit to add an act")),
	mcp.WithString("kind", mcp.Description("Optional check of the kind being added"), mcp.Enum("act", "scene", "beat")),
	mcp.WithString("title", mcp.Description("Title for acts and scenes")),
)

var nodeDeleteToolDef = tool("node_delete",
	"Delete a node and its whole subtree.",
	scriptIDArg(),
	mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var nodeMoveToolDef = tool("node_move",
	"Move a node with its subtree. Set exactly one of before or into.",
	scriptIDArg(),
	mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to move")),
	mcp.WithString("before", mcp.Description("Node of the same kind to place it before")),
	mcp.WithString("into", mcp.Description("New parent; the node is appended")),
)

var nodeUpdateToolDef = tool("node_update",
	"Rename an act or scene, set a beat's duration, or toggle collapse.",
	scriptIDArg(),
	mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	mcp.WithString("title", mcp.Description("New title (acts and scenes)")),
	mcp.WithNumber("duration", mcp.Description("Duration in seconds (beats)")),
	mcp.WithBoolean("toggle_collapse", mcp.Description("Flip the collapsed flag")),
)

var fieldSetToolDef = tool("field_set",
	"Replace the markup of a rich-text field.",
	append([]mcp.ToolOption{scriptIDArg()}, append(fieldArgs(),
		mcp.WithString("markup", mcp.Required(), mcp.Description("HTML markup")))...)...,
)

var fieldTypeToolDef = tool("field_type",
	"Type keys into a field through the editor, with mention and slash menus. "+
		"Named keys go in braces: {Enter}, {Tab}, {Escape}, {Backspace}, {Up}, {Down}. "+
		"Use {{ for a literal brace.",
	append([]mcp.ToolOption{scriptIDArg()}, append(fieldArgs(),
		mcp.WithString("keys", mcp.Required(), mcp.Description(`Key script, e.g. "Meet @Jo{Enter}"`)))...)...,
)

var fieldMarkdownToolDef = tool("field_markdown",
	"Convert markdown into a field. \"- [ ]\" and \"- [x]\" items become tasks.",
	append([]mcp.ToolOption{scriptIDArg()}, append(fieldArgs(),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown source")),
		mcp.WithBoolean("append", mcp.Description("Append instead of replacing")))...)...,
)

var resourceAddToolDef = tool("resource_add",
	"Add a wiki entry that fields can mention as a chip.",
	scriptIDArg(),
	mcp.WithString("value", mcp.Required(), mcp.Description("Name or value")),
	mcp.WithString("type", mcp.Description("character, location, object, media, web or note; synonyms accepted")),
	mcp.WithString("id", mcp.Description("Optional resource id")),
	mcp.WithString("label", mcp.Description("Display label")),
	mcp.WithString("color", mcp.Description("Chip colour; defaults by type")),
	mcp.WithString("icon", mcp.Description("Icon name; defaults by type")),
	mcp.WithString("description", mcp.Description("Description markup")),
	mcp.WithArray("tags", mcp.Description("Tags"), mcp.Items(map[string]any{"type": "string"})),
)

var resourceUpdateToolDef = tool("resource_update",
	"Edit a wiki entry. Omitted fields are left as they are.",
	scriptIDArg(),
	mcp.WithString("id", mcp.Required(), mcp.Description("Resource id")),
	mcp.WithString("value", mcp.Description("Name or value")),
	mcp.WithString("type", mcp.Description("New type; resets colour and icon unless given")),
	mcp.WithString("label", mcp.Description("Display label")),
	mcp.WithString("color", mcp.Description("Chip colour")),
	mcp.WithString("icon", mcp.Description("Icon name")),
	mcp.WithString("description", mcp.Description("Description markup")),
	mcp.WithArray("tags", mcp.Description("Tags"), mcp.Items(map[string]any{"type": "string"})),
)

var resourceDeleteToolDef = tool("resource_delete",
	"Delete a wiki entry. Chips that mention it stay and render as missing.",
	scriptIDArg(),
	mcp.WithString("id", mcp.Required(), mcp.Description("Resource id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var resourceReferencesToolDef = tool("resource_references",
	"List the fields that mention a resource and the resources that link to it.",
	scriptIDArg(),
	mcp.WithString("id", mcp.Required(), mcp.Description("Resource id")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var taskListToolDef = tool("task_list",
	"List every checklist item in the script with its breadcrumb context.",
	scriptIDArg(),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("todo", "in-progress", "done")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var taskSetStatusToolDef = tool("task_set_status",
	"Set the status of one task by the id returned from task_list.",
	scriptIDArg(),
	mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
	mcp.WithString("status", mcp.Required(), mcp.Enum("todo", "in-progress", "done")),
)

var timelineGetToolDef = tool("timeline_get",
	"Lay the script out on a time axis: spans per node, resource threads and structure templates.",
	scriptIDArg(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var versionSaveToolDef = tool("version_save",
	"Snapshot the script into its history.",
	scriptIDArg(),
	mcp.WithString("label", mcp.Description(`Version label; defaults to "Version N"`)),
)

var versionListToolDef = tool("version_list",
	"List the saved versions, newest first.",
	scriptIDArg(),
	mcp.WithReadOnlyHintAnnotation(true),
)

var versionRestoreToolDef = tool("version_restore",
	"Replace the content and resources with a saved version. The history is kept.",
	scriptIDArg(),
	mcp.WithString("version_id", mcp.Required(), mcp.Description("Version id")),
	mcp.WithDestructiveHintAnnotation(true),
)
