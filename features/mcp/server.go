// Package mcp exposes the ingest gate and search engine as Model
// Context Protocol tools, alongside the plain HTTP surface.
package mcp

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with the dependencies its tools call
// into.
type Server struct {
	server *mcp.Server
	gate   IngestGate
	search SearchEngine
}

// NewServer builds a configured MCP server with the ingest_document and
// search_library tools registered.
func NewServer(gate IngestGate, search SearchEngine) *Server {
	impl := &mcp.Implementation{
		Name:    "orion-mcp",
		Version: "1.0.0",
	}

	s := &Server{
		server: mcp.NewServer(impl, nil),
		gate:   gate,
		search: search,
	}

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Upload a document for this library: stream its raw bytes in, convert, chunk, embed, and persist it in the background. Returns a document id immediately; the document is not yet searchable when this call returns.",
	}, s.handleIngestDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_library",
		Description: "Search a user's ingested document library with cosine or hybrid (vector + BM25) ranking. Returns the top-matching chunks with their source document and similarity score.",
	}, s.handleSearchLibrary)
}

// NewHTTPHandler builds the Streamable HTTP transport handler for this
// server, mountable on any http.ServeMux path (e.g. "/mcp").
func NewHTTPHandler(s *Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// Run starts the server over stdio, without an HTTP listener. No
// entrypoint in this module calls it; main serves MCP over HTTP only.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
