// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes claimline tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/claimline/internal/batch"
	"github.com/starford/claimline/internal/timelines"
)

const formatURI = "claimline://claims-format"

// Server wraps the MCP server with claimline tools.
type Server struct {
	mcp *server.MCPServer
	svc *timelines.Service
}

// New creates a new MCP server with all claimline tools registered.
func New(svc *timelines.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Claimline",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("scan_claims",
		mcp.WithDescription("List the JSON files of the input folder and whether each holds claims data."),
	), s.scanClaims)

	s.mcp.AddTool(mcp.NewTool("normalize_claims",
		mcp.WithDescription("Normalize a claims JSON document into sorted timeline items. "+
			"Read the format first via get_claims_format or the "+formatURI+" resource."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Claims document as a JSON string")),
	), s.normalizeClaims)

	s.mcp.AddTool(mcp.NewTool("render_timeline",
		mcp.WithDescription("Render one input file to its HTML timeline. Unchanged files are not re-rendered."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the input folder (e.g. member.json)")),
	), s.renderTimeline)

	s.mcp.AddTool(mcp.NewTool("run_batch",
		mcp.WithDescription("Render every valid claims file of the input folder and report per-file results."),
	), s.runBatch)

	s.mcp.AddTool(mcp.NewTool("list_timelines",
		mcp.WithDescription("List rendered timelines from the catalog."),
		mcp.WithString("kind", mcp.Description("Optional item kind filter"),
			mcp.Enum("prescription-pending", "prescription-history", "medical-service")),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
	), s.listTimelines)

	s.mcp.AddTool(mcp.NewTool("search_timelines",
		mcp.WithDescription("Find rendered timelines whose items mention a medication, service or provider."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchTimelines)

	s.mcp.AddTool(mcp.NewTool("import_claims",
		mcp.WithDescription("Download a claims JSON file (http/https URL or data: URI) into the input folder and render it."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Source URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional target file name (.json is appended if missing)")),
	), s.importClaims)

	s.mcp.AddTool(mcp.NewTool("get_claims_format",
		mcp.WithDescription("Returns the accepted claims JSON format."),
	), s.getClaimsFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Claims Format",
			mcp.WithResourceDescription("Accepted claims JSON sections, fields and date formats."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readClaimsFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) scanClaims(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.Scan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no json files found"), nil
	}
	return jsonResult(entries)
}

func (s *Server) normalizeClaims(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Normalize(ctx, []byte(document))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) renderTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	changed, err := s.svc.RefreshFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"source":   path,
		"output":   batch.OutputName(path, s.svc.Suffix()),
		"rendered": changed,
	})
}

func (s *Server) runBatch(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.RunBatch(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listTimelines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	limit := req.GetInt("limit", 50)
	items, _, err := s.svc.List(ctx, limit, 0, kind, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no timelines found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.Source + " -> " + it.Output
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchTimelines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getClaimsFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ClaimsFormatContract), nil
}

func (s *Server) readClaimsFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ClaimsFormatContract,
		},
	}, nil
}
