package mcpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

type fakeReader struct {
	document []byte
	err      error
}

func (r *fakeReader) GetRun(context.Context, string) (*domain.DigestRun, error) {
	return nil, domain.ErrRunNotFound
}

func (r *fakeReader) LatestDocument(context.Context) ([]byte, error) {
	return r.document, r.err
}

const sampleDocument = `{
  "schema_version": 1,
  "metadata": {
    "title": "Daily arXiv Digest",
    "timestamp": "2025-08-29T06:00:00Z",
    "stats": {"total_papers": 2, "stage1_passed": 2, "stage2_passed": 1, "stage3_passed": 1}
  },
  "papers": [
    {"arxiv_id": "2508.11111", "title": "Consensus at Scale", "max_stage": 3},
    {"arxiv_id": "2508.22222", "title": "A Survey of Surveys", "max_stage": 1}
  ]
}`

func newTestServer(reader *fakeReader) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(reader, "test", logger)
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, not text", result.Content[0])
	}
	return text.Text
}

func TestLatestDigestReturnsDocumentVerbatim(t *testing.T) {
	srv := newTestServer(&fakeReader{document: []byte(sampleDocument)})

	result, err := srv.handleLatestDigest(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}
	if textContent(t, result) != sampleDocument {
		t.Fatal("document was not passed through verbatim")
	}
}

func TestLatestDigestWithoutDocument(t *testing.T) {
	srv := newTestServer(&fakeReader{err: domain.ErrDigestNotFound})

	result, err := srv.handleLatestDigest(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(textContent(t, result), "no digest") {
		t.Fatalf("unexpected message: %s", textContent(t, result))
	}
}

func TestGetPaperByID(t *testing.T) {
	srv := newTestServer(&fakeReader{document: []byte(sampleDocument)})

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"arxiv_id": "2508.11111"}

	result, err := srv.handleGetPaper(context.Background(), request)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}

	var paper struct {
		ArxivID  string `json:"arxiv_id"`
		Title    string `json:"title"`
		MaxStage int    `json:"max_stage"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &paper); err != nil {
		t.Fatalf("decode paper: %v", err)
	}
	if paper.Title != "Consensus at Scale" || paper.MaxStage != 3 {
		t.Fatalf("unexpected paper: %+v", paper)
	}
}

func TestGetPaperUnknownID(t *testing.T) {
	srv := newTestServer(&fakeReader{document: []byte(sampleDocument)})

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"arxiv_id": "9999.00000"}

	result, err := srv.handleGetPaper(context.Background(), request)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown paper")
	}
}

func TestGetPaperMissingArgument(t *testing.T) {
	srv := newTestServer(&fakeReader{document: []byte(sampleDocument)})

	result, err := srv.handleGetPaper(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing argument")
	}
}

func TestDigestStats(t *testing.T) {
	srv := newTestServer(&fakeReader{document: []byte(sampleDocument)})

	result, err := srv.handleDigestStats(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}

	var payload struct {
		Title string `json:"title"`
		Stats struct {
			TotalPapers  int `json:"total_papers"`
			Stage3Passed int `json:"stage3_passed"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &payload); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if payload.Title != "Daily arXiv Digest" || payload.Stats.TotalPapers != 2 || payload.Stats.Stage3Passed != 1 {
		t.Fatalf("unexpected stats payload: %+v", payload)
	}
}
