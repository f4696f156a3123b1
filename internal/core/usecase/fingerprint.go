package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

// promptVersion is bumped whenever prompt wording changes, so stale
// verdicts produced under older prompts are never served from cache.
const promptVersion = "v3"

// fingerprintPayload enumerates every input that can change a stage's
// output. Leaving anything out causes silent staleness, so additions to
// StageConfig must be mirrored here.
type fingerprintPayload struct {
	Stage         string               `json:"stage"`
	PromptVersion string               `json:"prompt_version"`
	Model         string               `json:"model"`
	UserPrompt    string               `json:"user_prompt"`
	Threshold     float64              `json:"threshold"`
	Temperature   float64              `json:"temperature"`
	MaxTextChars  int                  `json:"max_text_chars,omitempty"`
	CustomFields  []domain.CustomField `json:"custom_fields,omitempty"`

	PaperID    string   `json:"paper_id"`
	Title      string   `json:"title"`
	Categories []string `json:"categories"`
	Authors    []string `json:"authors,omitempty"`
	Abstract   string   `json:"abstract,omitempty"`
	FullText   string   `json:"full_text,omitempty"`
}

// StageFingerprint derives the deterministic cache key for one
// (paper, stage, configuration) triple. Only the paper fields visible
// at the given stage participate, so a changed abstract does not
// invalidate a stage 1 verdict.
func StageFingerprint(stage domain.Stage, paper domain.Paper, fullText string, cfg domain.StageConfig, model, userPrompt string) string {
	payload := fingerprintPayload{
		Stage:         stage.String(),
		PromptVersion: promptVersion,
		Model:         model,
		UserPrompt:    userPrompt,
		Threshold:     cfg.Threshold,
		Temperature:   cfg.Temperature,
		PaperID:       paper.ID,
		Title:         paper.Title,
		Categories:    paper.Categories,
	}

	if stage >= domain.Stage2 {
		payload.Authors = paper.Authors
		payload.Abstract = paper.Abstract
	}
	if stage == domain.Stage3 {
		payload.MaxTextChars = cfg.MaxTextChars
		payload.CustomFields = cfg.CustomFields
		payload.FullText = truncate(fullText, cfg.MaxTextChars)
	}

	return hashPayload(payload)
}

// HighlightFingerprint keys cached abstract highlights. The abstract
// itself participates so a revised abstract is re-highlighted.
func HighlightFingerprint(paperID, abstract, model, userPrompt string, temperature float64) string {
	payload := fingerprintPayload{
		Stage:         "highlight",
		PromptVersion: promptVersion,
		Model:         model,
		UserPrompt:    userPrompt,
		Temperature:   temperature,
		PaperID:       paperID,
		Abstract:      abstract,
	}
	return hashPayload(payload)
}

func hashPayload(payload fingerprintPayload) string {
	// encoding/json emits struct fields in declaration order, which
	// makes the serialization canonical for this fixed payload type.
	raw, err := json.Marshal(payload)
	if err != nil {
		// Only unmarshalable types reach this branch; the payload is
		// plain strings and numbers, so treat it as a programming error.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// truncate cuts at a byte budget, backing off to the previous rune
// boundary so a multi-byte character is never split in half.
func truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
