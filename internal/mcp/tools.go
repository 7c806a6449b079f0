package mcp

import "github.com/mark3labs/mcp-go/mcp"

var analyzeRepositoryTool = mcp.NewTool("analyze_repository",
	mcp.WithDescription("Submit a GitHub repository for analysis and wait until it is ready. The result becomes the active repository."),
	mcp.WithString("repo",
		mcp.Required(),
		mcp.Description("Repository URL or owner/name, e.g. microsoft/WSL"),
	),
)

var listRepositoriesTool = mcp.NewTool("list_repositories",
	mcp.WithDescription("List repositories that have already been analyzed."),
)

var getRepositoryTool = mcp.NewTool("get_repository",
	mcp.WithDescription("Get metadata and recent commits of a repository."),
	mcp.WithString("id",
		mcp.Description("Repository id (defaults to the active repository)"),
	),
)

var getDiagramTool = mcp.NewTool("get_diagram",
	mcp.WithDescription("Get the Mermaid file structure diagram of a repository."),
	mcp.WithString("id",
		mcp.Description("Repository id (defaults to the active repository)"),
	),
)

var askRepositoryTool = mcp.NewTool("ask_repository",
	mcp.WithDescription("Ask the repository agent a question about the code."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
	mcp.WithString("id",
		mcp.Description("Repository id (defaults to the active repository)"),
	),
)

var deleteRepositoryTool = mcp.NewTool("delete_repository",
	mcp.WithDescription("Delete an analyzed repository. Deleting the active repository ends the session."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Repository id"),
	),
)

var sessionTool = mcp.NewTool("session",
	mcp.WithDescription("Show, open or clear the active repository."),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Enum("show", "open", "clear"),
	),
	mcp.WithString("id",
		mcp.Description("Repository id, required for open"),
	),
)
