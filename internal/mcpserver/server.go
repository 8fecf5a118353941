// Package mcpserver exposes the journal to assistants over the Model
// Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/client"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/widget"
)

const formatURI = "daybook://entry-format"

// Pages reaches the journal pages that are open in a browser.
type Pages interface {
	Call(ctx context.Context, name string, args map[string]string) ([]string, error)
	CurrentEntry(ctx context.Context) (string, error)
}

// HubPages adapts an in-process hub.
type HubPages struct{ *widget.Hub }

// CurrentEntry implements Pages.
func (p HubPages) CurrentEntry(context.Context) (string, error) {
	return p.Hub.CurrentEntry(), nil
}

// RemotePages reaches the hub of a running server through its API.
type RemotePages struct{ Client *client.Client }

// Call implements Pages.
func (p RemotePages) Call(ctx context.Context, name string, args map[string]string) ([]string, error) {
	return p.Client.WidgetCall(ctx, name, args)
}

// CurrentEntry implements Pages.
func (p RemotePages) CurrentEntry(ctx context.Context) (string, error) {
	return p.Client.CurrentEntry(ctx)
}

// Server wraps the MCP server with the journal tools.
type Server struct {
	mcp      *server.MCPServer
	journal  *journal.Service
	calendar *calendar.Service
	pages    Pages
	now      func() time.Time
}

// New creates an MCP server with every tool registered. pages may be nil,
// in which case nothing is pushed to open pages.
func New(svc *journal.Service, cal *calendar.Service, pages Pages) *Server {
	s := &Server{journal: svc, calendar: cal, pages: pages, now: time.Now}

	s.mcp = server.NewMCPServer(
		"Daybook",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List journal entries, newest first, with title, date and preview."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default all)")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read the Markdown of a journal entry. Defaults to the entry open in the editor."),
		mcp.WithString("filename", mcp.Description("Entry filename, e.g. 2024-05-01-093015-entry.md")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search through journal entries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("new_entry",
		mcp.WithDescription("Create a blank entry for now and return its filename and title."),
	), s.newEntry)

	s.mcp.AddTool(mcp.NewTool("update_journal",
		mcp.WithDescription("Replace the content of a journal entry and reload it in open editors. "+
			"Content MUST follow the entry format; read it via get_entry_format or the "+
			formatURI+" resource."),
		mcp.WithString("filename", mcp.Description("Entry filename (default: the entry open in the editor)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete Markdown of the entry")),
	), s.updateJournal)

	s.mcp.AddTool(mcp.NewTool("current_entry",
		mcp.WithDescription("Filename of the entry currently open in the editor."),
	), s.currentEntry)

	s.mcp.AddTool(mcp.NewTool("calendar_events",
		mcp.WithDescription("Calendar events for the week of a date and for the date itself."),
		mcp.WithString("date", mcp.Description("ISO date (default today)")),
		mcp.WithBoolean("refresh", mcp.Description("Bypass the calendar cache")),
	), s.calendarEvents)

	s.mcp.AddTool(mcp.NewTool("get_entry_format",
		mcp.WithDescription("Returns the journal entry format. Call this before writing entries."),
	), s.getEntryFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Entry Format",
			mcp.WithResourceDescription("How journal entry files are written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves the tools over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.journal.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit := req.GetInt("limit", 0); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return jsonResult(entries)
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := s.target(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.journal.Get(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(toolError(name, err)), nil
	}
	return mcp.NewToolResultText(d.Content), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.journal.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) newEntry(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, err := s.journal.New(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e)
}

func (s *Server) updateJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := s.target(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.journal.Update(ctx, name, content); err != nil {
		return mcp.NewToolResultError(toolError(name, err)), nil
	}

	msg := fmt.Sprintf("updated: %s", name)
	if s.pages == nil {
		return mcp.NewToolResultText(msg), nil
	}
	acks, err := s.pages.Call(ctx, widget.CallUpdateJournal, map[string]string{"filename": name})
	switch {
	case errors.Is(err, widget.ErrNoPages):
		msg += " (not open in any editor)"
	case err != nil:
		msg += fmt.Sprintf(" (editor reload failed: %v)", err)
	}
	if len(acks) > 0 {
		msg += "\n" + strings.Join(acks, "\n")
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) currentEntry(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.pages == nil {
		return mcp.NewToolResultText("no entry open"), nil
	}
	name, err := s.pages.CurrentEntry(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if name == "" {
		return mcp.NewToolResultText("no entry open"), nil
	}
	return mcp.NewToolResultText(name), nil
}

func (s *Server) calendarEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := calendar.ParseDate(req.GetString("date", ""), s.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.calendar.Events(ctx, day, req.GetBool("refresh", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getEntryFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}

// target resolves the filename argument, falling back to the open entry.
func (s *Server) target(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	if name := req.GetString("filename", ""); name != "" {
		return name, nil
	}
	if s.pages != nil {
		name, err := s.pages.CurrentEntry(ctx)
		if err != nil {
			return "", err
		}
		if name != "" {
			return name, nil
		}
	}
	return "", errors.New("filename is required: no entry is open in the editor")
}

func toolError(name string, err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return fmt.Sprintf("not found: %s", name)
	case errors.Is(err, apperr.ErrInvalidName):
		return fmt.Sprintf("invalid filename: %s", name)
	case errors.Is(err, apperr.ErrEmptyContent):
		return "content must not be empty"
	}
	return err.Error()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
