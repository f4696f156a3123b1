package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/ports"
)

const excelKey = "digest.xlsx"

// ExcelExporter writes one spreadsheet row per paper, custom fields as
// trailing columns. Meant for readers who triage the digest in a
// spreadsheet rather than the web frontend.
type ExcelExporter struct {
	sink   ports.ExportSink
	logger *slog.Logger
}

func NewExcelExporter(sink ports.ExportSink, logger *slog.Logger) *ExcelExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelExporter{sink: sink, logger: logger}
}

func (e *ExcelExporter) Export(ctx context.Context, digest *domain.Digest) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Digest"
	f.SetSheetName(f.GetSheetName(0), sheet)

	header := []any{
		"arXiv ID", "Title", "Authors", "Categories", "Max Stage",
		"Stage 1 Score", "Stage 2 Score", "Stage 3 Score",
		"Novelty", "Impact", "Quality", "Abstract URL",
	}
	for _, field := range digest.Stage3.CustomFields {
		header = append(header, field.Name)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	document := BuildDocument(digest, digest.GeneratedAt)
	for i, paper := range document.Papers {
		row := []any{
			paper.ArxivID,
			paper.Title,
			strings.Join(paper.Authors, ", "),
			strings.Join(paper.Categories, "; "),
			paper.MaxStage,
			stageScore(paper.Stage1),
			stageScore(paper.Stage2),
			stage3Score(paper.Stage3),
		}
		if paper.Stage3 != nil {
			row = append(row, paper.Stage3.NoveltyScore, paper.Stage3.ImpactScore, paper.Stage3.QualityScore)
		} else {
			row = append(row, nil, nil, nil)
		}
		row = append(row, paper.AbsURL)
		for _, field := range digest.Stage3.CustomFields {
			var value any
			if paper.Stage3 != nil {
				value = paper.Stage3.CustomFields[field.Name]
			}
			row = append(row, value)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serialize workbook: %w", err)
	}
	if err := e.sink.Save(ctx, excelKey, buf); err != nil {
		return fmt.Errorf("save digest xlsx: %w", err)
	}

	e.logger.Info("digest_exported", "format", "xlsx", "papers", len(document.Papers))
	return nil
}

func stageScore(block *StageBlock) any {
	if block == nil {
		return nil
	}
	return block.Score
}

func stage3Score(block *Stage3Block) any {
	if block == nil {
		return nil
	}
	return block.Score
}
