package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/diagrams"
	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/session"
)

const noRepository = "No repository selected. Use the session tool to open one or analyze_repository to add one."

func (s *Server) handleAnalyzeRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}

	var last job.Update
	id, err := s.poller.Submit(ctx, repo, func(u job.Update) { last = u })
	if err != nil {
		var je *job.Error
		switch {
		case errors.Is(err, job.ErrEmptyReference), errors.Is(err, job.ErrJobInProgress):
			return mcp.NewToolResultError(err.Error()), nil
		case errors.As(err, &je):
			return mcp.NewToolResultError(fmt.Sprintf("%s (%s)", je.Message, je.Kind)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	if err := s.gate.Adopt(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("saving session: %v", err)), nil
	}
	st, err := s.gate.Settled(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validating repository: %v", err)), nil
	}
	if !st.Valid {
		return mcp.NewToolResultError(fmt.Sprintf("Repository %s was processed but could not be opened.", id)), nil
	}
	text, _ := last.Display()
	return mcp.NewToolResultText(fmt.Sprintf("%s Repository %s is now active.", text, id)), nil
}

func (s *Server) handleListRepositories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.client.ListRepos(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing repositories: %v", err)), nil
	}
	if len(repos) == 0 {
		return mcp.NewToolResultText("No past repositories found."), nil
	}

	active := s.gate.Identity()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d repositories:\n", len(repos)))
	for _, r := range repos {
		marker := " "
		if session.Identity(r.ID) == active {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s  (%s)\n", marker, r.ID, r.RepoURL, r.CollectionName))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := s.target(request)
	if id == "" {
		return mcp.NewToolResultError(noRepository), nil
	}
	repo, err := s.client.GetRepo(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch repo info: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRepo(repo)), nil
}

func (s *Server) handleGetDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := s.target(request)
	if id == "" {
		return mcp.NewToolResultError(noRepository), nil
	}
	graph, err := s.client.Diagram(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch diagram: %v", err)), nil
	}
	script, err := diagrams.Prepare(graph)
	if err != nil {
		return mcp.NewToolResultError("No diagram available for this repository."), nil
	}
	return mcp.NewToolResultText(script), nil
}

func (s *Server) handleAskRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	id := s.target(request)
	if id == "" {
		return mcp.NewToolResultError(noRepository), nil
	}
	answer, err := s.client.Chat(ctx, id, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("chat failed: %v", err)), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) handleDeleteRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.client.DeleteRepo(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("deleting repository %s: %v", id, err)), nil
	}
	if s.gate.Identity() == session.Identity(id) {
		if err := s.gate.Clear(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("clearing session: %v", err)), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted repository %s.", id)), nil
}

func (s *Server) handleSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: action"), nil
	}

	switch action {
	case "show":
	case "open":
		id := request.GetString("id", "")
		if id == "" {
			return mcp.NewToolResultError("missing required parameter: id"), nil
		}
		if err := s.gate.Adopt(ctx, session.Identity(id)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("saving session: %v", err)), nil
		}
	case "clear":
		if err := s.gate.Clear(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("clearing session: %v", err)), nil
		}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}

	st, err := s.gate.Settled(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if st.Identity.IsZero() {
		return mcp.NewToolResultText("No active repository."), nil
	}
	if !st.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("Repository %s is not available.", st.Identity)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Active repository: %s", st.Identity)), nil
}

// target returns the id argument, falling back to the validated active
// repository.
func (s *Server) target(request mcp.CallToolRequest) string {
	if id := request.GetString("id", ""); id != "" {
		return id
	}
	if st := s.gate.Snapshot(); st.Valid {
		return string(st.Identity)
	}
	return ""
}

// formatRepo renders repository info as text for agent consumption.
func formatRepo(r *api.RepoInfo) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Repository: %s\n", r.DisplayName()))
	sb.WriteString(fmt.Sprintf("URL: %s\n", r.RepoURL))
	if r.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", r.Description))
	}
	sb.WriteString(fmt.Sprintf("Stars: %s  Forks: %s  Issues: %s\n", count(r.Stars), count(r.Forks), count(r.Issues)))
	if r.License != "" {
		sb.WriteString(fmt.Sprintf("License: %s\n", r.License))
	}
	if len(r.LastActivity) > 0 {
		sb.WriteString("\nRecent activity:\n")
		for _, c := range r.LastActivity {
			sb.WriteString(fmt.Sprintf("- %s %s (%s, %s)\n", shortSHA(c.SHA), c.Message, c.Author, c.Date))
		}
	}
	return sb.String()
}

func count(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
