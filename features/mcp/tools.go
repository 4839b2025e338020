package mcp

import (
	"context"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"orion/features/search"
)

// IngestGate is the subset of ingest.Gate the ingest_document tool
// calls into.
type IngestGate interface {
	Accept(ctx context.Context, userID, filename string, src io.Reader) (string, error)
}

// SearchEngine is the subset of search.Engine the search_library tool
// calls into.
type SearchEngine interface {
	Search(ctx context.Context, userID, query, algorithm string, limit int) (*search.Response, error)
}

// IngestDocumentInput is the ingest_document tool's input schema.
type IngestDocumentInput struct {
	UserID   string `json:"user_id" jsonschema:"the uploading user's id, an email-like identifier scoping the library"`
	Filename string `json:"filename" jsonschema:"the original filename, including extension"`
	Content  string `json:"content" jsonschema:"the document's raw text content"`
}

// IngestDocumentOutput is the ingest_document tool's output schema.
type IngestDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

func (s *Server) handleIngestDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	docID, err := s.gate.Accept(ctx, input.UserID, input.Filename, strings.NewReader(input.Content))
	if err != nil {
		return nil, IngestDocumentOutput{}, err
	}

	return nil, IngestDocumentOutput{DocumentID: docID, Status: "queued"}, nil
}

// SearchLibraryInput is the search_library tool's input schema.
type SearchLibraryInput struct {
	UserID    string `json:"user_id" jsonschema:"the user id whose library to search"`
	Query     string `json:"query" jsonschema:"the search query"`
	Algorithm string `json:"algorithm,omitempty" jsonschema:"ranking algorithm: cosine (default) or hybrid"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10, max 100)"`
}

// SearchLibraryOutput is the search_library tool's output schema.
type SearchLibraryOutput struct {
	Results           []search.Result `json:"results"`
	DocumentsSearched int             `json:"documents_searched"`
	ChunksSearched    int             `json:"chunks_searched"`
	RestrictedModel   string          `json:"restricted_model,omitempty"`
}

func (s *Server) handleSearchLibrary(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchLibraryInput,
) (*mcp.CallToolResult, SearchLibraryOutput, error) {
	algorithm := input.Algorithm
	if algorithm == "" {
		algorithm = search.AlgorithmCosine
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	resp, err := s.search.Search(ctx, input.UserID, input.Query, algorithm, limit)
	if err != nil {
		return nil, SearchLibraryOutput{}, err
	}

	return nil, SearchLibraryOutput{
		Results:           resp.Results,
		DocumentsSearched: resp.DocumentsSearched,
		ChunksSearched:    resp.ChunksSearched,
		RestrictedModel:   resp.RestrictedModel,
	}, nil
}
