package mcp

import "github.com/mark3labs/mcp-go/mcp"

const containerDescription = "Path to a Scripts.rxdata container"

var listToolDef = mcp.NewTool("scripts_list",
	mcp.WithDescription("List every entry of a Scripts.rxdata container in order: index, id, display name, safe file name, payload size and decode status. Reports name collisions."),
	mcp.WithString("container", mcp.Required(), mcp.Description(containerDescription)),
)

var showToolDef = mcp.NewTool("scripts_show",
	mcp.WithDescription("Return the decompressed Ruby source of one script, addressed by container index or exact display name."),
	mcp.WithString("container", mcp.Required(), mcp.Description(containerDescription)),
	mcp.WithNumber("index", mcp.Description("Position in the container (0-based)")),
	mcp.WithString("name", mcp.Description("Exact display name, used when index is omitted")),
)

var extractToolDef = mcp.NewTool("scripts_extract",
	mcp.WithDescription("Write every decodable script to <output_dir>/<safe name>.rb. Defaults to a timestamped directory under output_root."),
	mcp.WithString("container", mcp.Required(), mcp.Description(containerDescription)),
	mcp.WithString("output_dir", mcp.Description("Target directory")),
)

var saveToolDef = mcp.NewTool("scripts_save",
	mcp.WithDescription("Write a single script, found by exact display name, to <output_dir>/<safe name>.rb."),
	mcp.WithString("container", mcp.Required(), mcp.Description(containerDescription)),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exact display name")),
	mcp.WithString("output_dir", mcp.Description("Target directory (default: saved_dir)")),
)

var searchToolDef = mcp.NewTool("scripts_search",
	mcp.WithDescription("Find the scripts that define a method. With no match, returns every defined method name instead."),
	mcp.WithString("container", mcp.Required(), mcp.Description(containerDescription)),
	mcp.WithString("identifier", mcp.Required(), mcp.Description("Method name, e.g. update or valid?")),
	mcp.WithBoolean("precise", mcp.Description("List identifiers with the Ruby parser instead of the lexical scan")),
)

var injectToolDef = mcp.NewTool("scripts_inject",
	mcp.WithDescription("Replace script sources with edited .rb files matched by safe file name, and write a new container. The input container is never modified."),
	mcp.WithString("container", mcp.Required(), mcp.Description(containerDescription)),
	mcp.WithArray("files", mcp.Required(), mcp.Description("Script files or glob patterns (** supported)"), mcp.WithStringItems()),
	mcp.WithString("output", mcp.Description("Output container path (default: <base>_updated<ext>)")),
)

var historyToolDef = mcp.NewTool("scripts_history",
	mcp.WithDescription("List journaled extract, save and inject runs, newest first."),
	mcp.WithString("container", mcp.Description("Only runs on this container")),
	mcp.WithNumber("limit", mcp.Description("Maximum runs (default 20, max 500)")),
)
