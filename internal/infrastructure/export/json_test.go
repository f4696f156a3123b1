package export

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

func testDigest() *domain.Digest {
	pass := func(score float64) *domain.StageResult { return &domain.StageResult{Pass: true, Score: score} }
	fail := func(score float64) *domain.StageResult { return &domain.StageResult{Pass: false, Score: score} }

	return &domain.Digest{
		RunID:       "run-1",
		Title:       "ArXiv Digest - Reimagined",
		GeneratedAt: time.Date(2025, 8, 29, 8, 0, 0, 0, time.UTC),
		UserPrompt:  "LLM systems",
		Categories:  []string{"cs.AI"},
		MaxResults:  50,
		Model:       "deepseek-chat",
		Temperature: 0.1,
		Stage1:      domain.StageConfig{Threshold: 0.5},
		Stage2:      domain.StageConfig{Threshold: 0.7},
		Stage3: domain.StageConfig{
			Threshold:    0.8,
			CustomFields: []domain.CustomField{{Name: "methodology", Description: "d"}},
		},
		Outcomes: []domain.PaperOutcome{
			{
				Paper:  domain.Paper{ID: "low", Title: "Low", Abstract: "plain"},
				Stage1: fail(0.2),
			},
			{
				Paper:  domain.Paper{ID: "deep", Title: "Deep", Abstract: "original abstract"},
				Stage1: pass(0.9), Stage2: pass(0.9), Stage3: pass(0.95),
				Highlight: &domain.Highlight{Text: "**highlighted** abstract"},
			},
			{
				Paper:  domain.Paper{ID: "mid", Title: "Mid", Abstract: "plain"},
				Stage1: pass(0.8), Stage2: fail(0.3),
			},
		},
		Stats: domain.RunStats{TotalPapers: 3, Stage1Passed: 2, Stage2Passed: 1, Stage3Passed: 1},
	}
}

func TestBuildDocumentOrdersAndFormats(t *testing.T) {
	doc := BuildDocument(testDigest(), time.Date(2025, 8, 29, 9, 0, 0, 0, time.UTC))

	if doc.SchemaVersion != 1 {
		t.Fatalf("schema_version = %d", doc.SchemaVersion)
	}
	if doc.Metadata.Timestamp != "2025-08-29T09:00:00Z" {
		t.Fatalf("timestamp = %q", doc.Metadata.Timestamp)
	}
	if doc.Metadata.StageThresholds != (StageThresholds{Stage1: 0.5, Stage2: 0.7, Stage3: 0.8}) {
		t.Fatalf("thresholds = %+v", doc.Metadata.StageThresholds)
	}
	if doc.Metadata.Stats.TotalPapers != 3 {
		t.Fatalf("stats = %+v", doc.Metadata.Stats)
	}

	var ids []string
	for _, p := range doc.Papers {
		ids = append(ids, p.ArxivID)
	}
	want := []string{"deep", "mid", "low"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}

	deep := doc.Papers[0]
	if deep.MaxStage != 3 {
		t.Fatalf("max_stage = %d", deep.MaxStage)
	}
	if deep.Abstract != "**highlighted** abstract" {
		t.Fatalf("highlighted abstract not substituted: %q", deep.Abstract)
	}
	if doc.Papers[1].MaxStage != 1 || doc.Papers[2].MaxStage != 0 {
		t.Fatalf("max stages wrong: %d %d", doc.Papers[1].MaxStage, doc.Papers[2].MaxStage)
	}
}

type memSink struct {
	saved map[string][]byte
}

func (s *memSink) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[key] = raw
	return nil
}

type memDocRepo struct {
	runID    string
	document []byte
}

func (r *memDocRepo) CreateRun(context.Context, *domain.DigestRun) error { return nil }
func (r *memDocRepo) FinishRun(context.Context, string, domain.RunStatus, string, time.Time) error {
	return nil
}
func (r *memDocRepo) GetRun(context.Context, string) (*domain.DigestRun, error) { return nil, nil }
func (r *memDocRepo) SaveDocument(_ context.Context, runID string, document []byte) error {
	r.runID = runID
	r.document = document
	return nil
}
func (r *memDocRepo) LatestDocument(context.Context) ([]byte, error) { return r.document, nil }

func TestJSONExporterWritesSinkAndRepository(t *testing.T) {
	sink := &memSink{}
	repo := &memDocRepo{}
	exporter := NewJSONExporter(sink, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := exporter.Export(context.Background(), testDigest()); err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, ok := sink.saved["digest.json"]
	if !ok {
		t.Fatal("digest.json not written to sink")
	}
	if repo.runID != "run-1" || len(repo.document) == 0 {
		t.Fatalf("document not persisted: run=%q bytes=%d", repo.runID, len(repo.document))
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("exported document is not valid json: %v", err)
	}
	if len(doc.Papers) != 3 {
		t.Fatalf("papers = %d", len(doc.Papers))
	}
	if doc.Papers[0].Stage3 == nil || !doc.Papers[0].Stage3.Pass {
		t.Fatalf("stage3 result lost in round trip: %+v", doc.Papers[0].Stage3)
	}
}

func TestExcelExporterWritesWorkbook(t *testing.T) {
	sink := &memSink{}
	exporter := NewExcelExporter(sink, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := exporter.Export(context.Background(), testDigest()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(sink.saved["digest.xlsx"]) == 0 {
		t.Fatal("digest.xlsx not written to sink")
	}
}

func TestStage3BlockKeepsZeroSubScores(t *testing.T) {
	digest := testDigest()
	digest.Outcomes = digest.Outcomes[:1]
	digest.Outcomes[0].Stage1 = &domain.StageResult{Pass: true, Score: 0.9}
	digest.Outcomes[0].Stage2 = &domain.StageResult{Pass: true, Score: 0.9}
	digest.Outcomes[0].Stage3 = &domain.StageResult{
		Pass:         true,
		Score:        0.85,
		NoveltyScore: 0,
		ImpactScore:  0.5,
		QualityScore: 0,
	}

	doc := BuildDocument(digest, time.Date(2025, 8, 29, 6, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(doc.Papers[0].Stage3)
	if err != nil {
		t.Fatalf("marshal stage3 block: %v", err)
	}

	for _, key := range []string{`"novelty_score":0`, `"impact_score":0.5`, `"quality_score":0`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("stage3 block missing %s: %s", key, raw)
		}
	}
}
