package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
)

// schemaVersion guards frontend consumers against silent document
// shape changes.
const schemaVersion = 1

const jsonKey = "digest.json"

// Document is the wire format of an exported digest.
type Document struct {
	SchemaVersion int          `json:"schema_version"`
	Metadata      Metadata     `json:"metadata"`
	Papers        []PaperEntry `json:"papers"`
}

type Metadata struct {
	Title           string               `json:"title"`
	Timestamp       string               `json:"timestamp"`
	UserPrompt      string               `json:"user_prompt"`
	ArxivConfig     ArxivConfig          `json:"arxiv_config"`
	LLMConfig       LLMConfig            `json:"llm_config"`
	StageThresholds StageThresholds      `json:"stage_thresholds"`
	CustomFields    []domain.CustomField `json:"custom_fields"`
	Stats           domain.RunStats      `json:"stats"`
}

type ArxivConfig struct {
	Categories []string `json:"categories"`
	MaxResults int      `json:"max_results"`
}

type LLMConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

type StageThresholds struct {
	Stage1 float64 `json:"stage1"`
	Stage2 float64 `json:"stage2"`
	Stage3 float64 `json:"stage3"`
}

type PaperEntry struct {
	ArxivID    string   `json:"arxiv_id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Categories []string `json:"categories"`
	Abstract   string   `json:"abstract"`
	PDFURL     string   `json:"pdf_url"`
	AbsURL     string   `json:"abs_url"`
	Published  string   `json:"published"`

	Stage1   *StageBlock  `json:"stage1"`
	Stage2   *StageBlock  `json:"stage2"`
	Stage3   *Stage3Block `json:"stage3"`
	MaxStage int          `json:"max_stage"`

	Highlight *domain.Highlight `json:"highlight,omitempty"`
}

// StageBlock is the per-stage verdict as the frontend consumes it.
type StageBlock struct {
	Pass      bool             `json:"pass"`
	Score     float64          `json:"score"`
	Reasoning string           `json:"reasoning"`
	Messages  []domain.Message `json:"messages"`

	Usage         *domain.Usage `json:"usage"`
	EstimatedCost *float64      `json:"estimated_cost"`
	CostCurrency  *string       `json:"estimated_cost_currency"`
}

// Stage3Block always carries the three sub-scores; a genuine 0.0 must
// survive into the document.
type Stage3Block struct {
	StageBlock
	NoveltyScore float64           `json:"novelty_score"`
	ImpactScore  float64           `json:"impact_score"`
	QualityScore float64           `json:"quality_score"`
	CustomFields map[string]string `json:"custom_fields"`
}

// JSONExporter renders the digest document, writes it to the export
// sink and persists it in the repository for API access.
type JSONExporter struct {
	sink   ports.ExportSink
	repo   ports.DigestRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewJSONExporter(sink ports.ExportSink, repo ports.DigestRepository, logger *slog.Logger) *JSONExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONExporter{
		sink:   sink,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (e *JSONExporter) Export(ctx context.Context, digest *domain.Digest) error {
	document := BuildDocument(digest, e.now())

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal digest document: %w", err)
	}

	if e.sink != nil {
		if err := e.sink.Save(ctx, jsonKey, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("save digest json: %w", err)
		}
	}
	if e.repo != nil {
		if err := e.repo.SaveDocument(ctx, digest.RunID, data); err != nil {
			return fmt.Errorf("persist digest document: %w", err)
		}
	}

	e.logger.Info("digest_exported", "format", "json", "papers", len(document.Papers), "bytes", len(data))
	return nil
}

// BuildDocument flattens a digest into the export shape. Papers are
// ordered by how deep they got, deepest stage first, then by the score
// of their deepest evaluated stage.
func BuildDocument(digest *domain.Digest, timestamp time.Time) Document {
	papers := make([]PaperEntry, 0, len(digest.Outcomes))
	for _, outcome := range digest.Outcomes {
		papers = append(papers, buildPaperEntry(outcome))
	}

	sort.SliceStable(papers, func(i, j int) bool {
		if papers[i].MaxStage != papers[j].MaxStage {
			return papers[i].MaxStage > papers[j].MaxStage
		}
		return bestScore(papers[i]) > bestScore(papers[j])
	})

	return Document{
		SchemaVersion: schemaVersion,
		Metadata: Metadata{
			Title:      digest.Title,
			Timestamp:  timestamp.Format(time.RFC3339),
			UserPrompt: digest.UserPrompt,
			ArxivConfig: ArxivConfig{
				Categories: digest.Categories,
				MaxResults: digest.MaxResults,
			},
			LLMConfig: LLMConfig{
				Model:       digest.Model,
				Temperature: digest.Temperature,
			},
			StageThresholds: StageThresholds{
				Stage1: digest.Stage1.Threshold,
				Stage2: digest.Stage2.Threshold,
				Stage3: digest.Stage3.Threshold,
			},
			CustomFields: digest.Stage3.CustomFields,
			Stats:        digest.Stats,
		},
		Papers: papers,
	}
}

func buildPaperEntry(outcome domain.PaperOutcome) PaperEntry {
	paper := outcome.Paper

	abstract := paper.Abstract
	if outcome.Highlight != nil && outcome.Highlight.Text != "" {
		abstract = outcome.Highlight.Text
	}

	published := ""
	if !paper.Published.IsZero() {
		published = paper.Published.Format(time.RFC3339)
	}

	return PaperEntry{
		ArxivID:    paper.ID,
		Title:      paper.Title,
		Authors:    paper.Authors,
		Categories: paper.Categories,
		Abstract:   abstract,
		PDFURL:     paper.PDFURL,
		AbsURL:     paper.AbsURL,
		Published:  published,
		Stage1:     buildStageBlock(outcome.Stage1),
		Stage2:     buildStageBlock(outcome.Stage2),
		Stage3:     buildStage3Block(outcome.Stage3),
		MaxStage:   outcome.MaxStage(),
		Highlight:  outcome.Highlight,
	}
}

func buildStageBlock(result *domain.StageResult) *StageBlock {
	if result == nil {
		return nil
	}
	return &StageBlock{
		Pass:          result.Pass,
		Score:         result.Score,
		Reasoning:     result.Reasoning,
		Messages:      result.Messages,
		Usage:         result.Usage,
		EstimatedCost: result.EstimatedCost,
		CostCurrency:  result.CostCurrency,
	}
}

func buildStage3Block(result *domain.StageResult) *Stage3Block {
	if result == nil {
		return nil
	}
	return &Stage3Block{
		StageBlock:   *buildStageBlock(result),
		NoveltyScore: result.NoveltyScore,
		ImpactScore:  result.ImpactScore,
		QualityScore: result.QualityScore,
		CustomFields: result.CustomFields,
	}
}

func bestScore(p PaperEntry) float64 {
	switch {
	case p.Stage3 != nil:
		return p.Stage3.Score
	case p.Stage2 != nil:
		return p.Stage2.Score
	case p.Stage1 != nil:
		return p.Stage1.Score
	default:
		return 0
	}
}
