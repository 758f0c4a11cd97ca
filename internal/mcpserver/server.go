// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the inbox to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/noteservice"
)

const usageURI = "inbox://usage"

// Server wraps the MCP server with inbox tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all inbox tools registered.
func New(svc *noteservice.Service, logger *slog.Logger) *Server {
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"Inbox",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("File a new note. Read "+usageURI+" for how tags behave."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text, must not be blank")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Ordered free-form tags")),
		mcp.WithString("created_at", mcp.Description("Optional RFC 3339 timestamp to back-date the note")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read one note by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first, optionally filtered by an exact tag and a creation time window."),
		mcp.WithNumber("limit", mcp.Description("Max notes, default 50, max 1000")),
		mcp.WithString("tag", mcp.Description("Exact, case-sensitive tag")),
		mcp.WithString("created_after", mcp.Description("RFC 3339, inclusive")),
		mcp.WithString("created_before", mcp.Description("RFC 3339, exclusive")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content and tags of a note."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New text")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("New tags; omit to clear")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note and all its comments."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("add_comment",
		mcp.WithDescription("Comment on a note."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Comment text")),
		mcp.WithBoolean("as_note", mcp.Description("Also file the comment as a new untagged note")),
	), s.addComment)

	s.mcp.AddTool(mcp.NewTool("list_comments",
		mcp.WithDescription("List the comments of a note, oldest first."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
	), s.listComments)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every tag used on notes. With detailed, include usage counts and last activity."),
		mcp.WithBoolean("detailed", mcp.Description("Include count and latest_updated_at")),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("search_tags",
		mcp.WithDescription("Search the tag catalog by name prefix. Matches come with their whole subtree."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("Case-sensitive name prefix")),
	), s.searchTags)

	s.mcp.AddTool(mcp.NewTool("get_child_tags",
		mcp.WithDescription("List the direct children of a catalog tag. Omit parent_id for the roots."),
		mcp.WithNumber("parent_id", mcp.Description("Catalog tag id, 0 for roots")),
	), s.getChildTags)

	s.mcp.AddResource(
		mcp.NewResource(usageURI, "Inbox usage",
			mcp.WithResourceDescription("How notes, tags and comments behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsage,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns a service error into a tool result. Storage details stay
// in the log.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError(ve.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		s.logger.Error("mcp tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func requireID(req mcp.CallToolRequest, key string) (int64, error) {
	v, err := req.RequireFloat(key)
	if err != nil {
		return 0, apperr.Invalid(key, err)
	}
	if v < 1 || v != float64(int64(v)) {
		return 0, apperr.Invalid(key, fmt.Errorf("must be a positive integer, got %v", v))
	}
	return int64(v), nil
}

func optionalTime(req mcp.CallToolRequest, key string) (*time.Time, error) {
	raw := req.GetString(key, "")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperr.Invalid(key, err)
	}
	return &t, nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	createdAt, err := optionalTime(req, "created_at")
	if err != nil {
		return s.toolError("create_note", err), nil
	}
	n, err := s.svc.CreateNote(ctx, content, req.GetStringSlice("tags", nil), createdAt)
	if err != nil {
		return s.toolError("create_note", err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return s.toolError("get_note", err), nil
	}
	n, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return s.toolError("get_note", err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := noteservice.ListQuery{
		Limit: req.GetInt("limit", 0),
		Tag:   req.GetString("tag", ""),
	}
	var err error
	if q.CreatedAfter, err = optionalTime(req, "created_after"); err != nil {
		return s.toolError("list_notes", err), nil
	}
	if q.CreatedBefore, err = optionalTime(req, "created_before"); err != nil {
		return s.toolError("list_notes", err), nil
	}
	notes, err := s.svc.ListNotes(ctx, q)
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return s.toolError("update_note", err), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.UpdateNote(ctx, id, content, req.GetStringSlice("tags", nil))
	if err != nil {
		return s.toolError("update_note", err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "id")
	if err != nil {
		return s.toolError("delete_note", err), nil
	}
	if err := s.svc.DeleteNote(ctx, id); err != nil {
		return s.toolError("delete_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) addComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := requireID(req, "note_id")
	if err != nil {
		return s.toolError("add_comment", err), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("as_note", false) {
		c, n, err := s.svc.AddCommentAsNote(ctx, noteID, content)
		if err != nil {
			return s.toolError("add_comment", err), nil
		}
		return jsonResult(map[string]any{"comment": c, "note": n}), nil
	}
	c, err := s.svc.AddComment(ctx, noteID, content)
	if err != nil {
		return s.toolError("add_comment", err), nil
	}
	return jsonResult(map[string]any{"comment": c}), nil
}

func (s *Server) listComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := requireID(req, "note_id")
	if err != nil {
		return s.toolError("list_comments", err), nil
	}
	comments, err := s.svc.ListComments(ctx, noteID)
	if err != nil {
		return s.toolError("list_comments", err), nil
	}
	return jsonResult(comments), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if req.GetBool("detailed", false) {
		tags, err := s.svc.ListDetailedTags(ctx)
		if err != nil {
			return s.toolError("list_tags", err), nil
		}
		return jsonResult(tags), nil
	}
	tags, err := s.svc.ListAllTags(ctx)
	if err != nil {
		return s.toolError("list_tags", err), nil
	}
	return jsonResult(tags), nil
}

func (s *Server) searchTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags, err := s.svc.SearchTags(ctx, prefix)
	if err != nil {
		return s.toolError("search_tags", err), nil
	}
	return jsonResult(tags), nil
}

func (s *Server) getChildTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parent := req.GetInt("parent_id", 0)
	if parent < 0 {
		return s.toolError("get_child_tags", apperr.Invalid("parent_id", errors.New("must not be negative"))), nil
	}
	tags, err := s.svc.GetChildTags(ctx, int64(parent))
	if err != nil {
		return s.toolError("get_child_tags", err), nil
	}
	return jsonResult(tags), nil
}

func (s *Server) readUsage(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      usageURI,
			MIMEType: "text/markdown",
			Text:     UsageGuide,
		},
	}, nil
}
