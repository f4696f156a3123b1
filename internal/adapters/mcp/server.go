// Package mcpadapter exposes the digest read model as Model Context
// Protocol tools so LLM agents can query filtered papers over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/export"
)

type Server struct {
	reader ports.DigestReader
	logger *slog.Logger
	mcp    *server.MCPServer
}

func NewServer(reader ports.DigestReader, version string, logger *slog.Logger) *Server {
	s := &Server{
		reader: reader,
		logger: logger,
	}

	s.mcp = server.NewMCPServer(
		"arxiv-digest",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(
		mcp.NewTool("latest_digest",
			mcp.WithDescription("Return the most recent paper digest as JSON: run metadata, stage thresholds and every evaluated paper with its per-stage scores."),
		),
		s.handleLatestDigest,
	)

	s.mcp.AddTool(
		mcp.NewTool("get_paper",
			mcp.WithDescription("Return a single paper from the most recent digest by its arXiv identifier, including stage results and the highlighted abstract when available."),
			mcp.WithString("arxiv_id",
				mcp.Required(),
				mcp.Description("arXiv identifier, e.g. 2508.12345"),
			),
		),
		s.handleGetPaper,
	)

	s.mcp.AddTool(
		mcp.NewTool("digest_stats",
			mcp.WithDescription("Return cohort statistics of the most recent digest: total papers and how many passed each stage."),
		),
		s.handleDigestStats,
	)

	return s
}

// ServeStdio blocks until stdin closes or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp_server_start", "transport", "stdio")
	return server.ServeStdio(s.mcp, server.WithStdioContextFunc(
		func(context.Context) context.Context { return ctx },
	))
}

func (s *Server) handleLatestDigest(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := s.reader.LatestDocument(ctx)
	if err != nil {
		return toolError("load latest digest", err), nil
	}
	return mcp.NewToolResultText(string(document)), nil
}

func (s *Server) handleGetPaper(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arxivID, err := request.RequireString("arxiv_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	arxivID = strings.TrimSpace(arxivID)
	if arxivID == "" {
		return mcp.NewToolResultError("arxiv_id must not be empty"), nil
	}

	document, err := s.loadDocument(ctx)
	if err != nil {
		return toolError("load latest digest", err), nil
	}

	for i := range document.Papers {
		if document.Papers[i].ArxivID == arxivID {
			payload, err := json.MarshalIndent(document.Papers[i], "", "  ")
			if err != nil {
				return toolError("encode paper", err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("paper %q is not part of the latest digest", arxivID)), nil
}

func (s *Server) handleDigestStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := s.loadDocument(ctx)
	if err != nil {
		return toolError("load latest digest", err), nil
	}

	payload, err := json.MarshalIndent(map[string]any{
		"title":     document.Metadata.Title,
		"timestamp": document.Metadata.Timestamp,
		"stats":     document.Metadata.Stats,
	}, "", "  ")
	if err != nil {
		return toolError("encode stats", err), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) loadDocument(ctx context.Context) (*export.Document, error) {
	raw, err := s.reader.LatestDocument(ctx)
	if err != nil {
		return nil, err
	}
	var document export.Document
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("decode digest document: %w", err)
	}
	return &document, nil
}

func toolError(operation string, err error) *mcp.CallToolResult {
	if domain.IsKind(err, domain.ErrDigestNotFound) {
		return mcp.NewToolResultError("no digest has been generated yet")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", operation, err))
}
