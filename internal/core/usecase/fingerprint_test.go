package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

func fingerprintPaper() domain.Paper {
	return domain.Paper{
		ID:         "2401.12345",
		Title:      "Scaling Laws Revisited",
		Authors:    []string{"J. Doe"},
		Categories: []string{"cs.LG"},
		Abstract:   "We revisit scaling laws.",
	}
}

func TestStageFingerprintIsDeterministic(t *testing.T) {
	cfg := domain.StageConfig{Threshold: 0.5, Temperature: 0.1}
	a := StageFingerprint(domain.Stage1, fingerprintPaper(), "", cfg, "deepseek-chat", "ml theory")
	b := StageFingerprint(domain.Stage1, fingerprintPaper(), "", cfg, "deepseek-chat", "ml theory")
	if a != b {
		t.Fatal("identical inputs must yield identical keys")
	}
	if len(a) != 64 {
		t.Fatalf("key %q is not a sha256 hex digest", a)
	}
}

func TestStageFingerprintChangesWithEachInput(t *testing.T) {
	base := domain.StageConfig{Threshold: 0.7, Temperature: 0.1}
	key := func(paper domain.Paper, cfg domain.StageConfig, model, prompt string) string {
		return StageFingerprint(domain.Stage2, paper, "", cfg, model, prompt)
	}
	ref := key(fingerprintPaper(), base, "deepseek-chat", "ml theory")

	altPaper := fingerprintPaper()
	altPaper.Abstract = "Entirely different abstract."
	altThreshold := base
	altThreshold.Threshold = 0.71
	altTemp := base
	altTemp.Temperature = 0.2

	variants := map[string]string{
		"abstract":    key(altPaper, base, "deepseek-chat", "ml theory"),
		"threshold":   key(fingerprintPaper(), altThreshold, "deepseek-chat", "ml theory"),
		"temperature": key(fingerprintPaper(), altTemp, "deepseek-chat", "ml theory"),
		"model":       key(fingerprintPaper(), base, "deepseek-reasoner", "ml theory"),
		"user prompt": key(fingerprintPaper(), base, "deepseek-chat", "systems"),
	}
	for name, got := range variants {
		if got == ref {
			t.Errorf("changing %s did not change the key", name)
		}
	}
}

func TestStageFingerprintOnlyHashesVisibleFields(t *testing.T) {
	cfg := domain.StageConfig{Threshold: 0.5}

	a := fingerprintPaper()
	b := fingerprintPaper()
	b.Abstract = "Revised abstract."
	b.Authors = []string{"Someone Else"}

	if StageFingerprint(domain.Stage1, a, "", cfg, "m", "p") != StageFingerprint(domain.Stage1, b, "", cfg, "m", "p") {
		t.Fatal("stage 1 keys must ignore abstract and authors")
	}
	if StageFingerprint(domain.Stage2, a, "", cfg, "m", "p") == StageFingerprint(domain.Stage2, b, "", cfg, "m", "p") {
		t.Fatal("stage 2 keys must include abstract and authors")
	}
}

func TestStageFingerprintTruncatesFullText(t *testing.T) {
	cfg := domain.StageConfig{Threshold: 0.8, MaxTextChars: 10}
	long := "0123456789 tail that exceeds the cap"
	short := "0123456789"

	a := StageFingerprint(domain.Stage3, fingerprintPaper(), long, cfg, "m", "p")
	b := StageFingerprint(domain.Stage3, fingerprintPaper(), short, cfg, "m", "p")
	if a != b {
		t.Fatal("text beyond max_text_chars must not affect the key")
	}

	cfg.CustomFields = []domain.CustomField{{Name: "methodology", Description: "d"}}
	c := StageFingerprint(domain.Stage3, fingerprintPaper(), short, cfg, "m", "p")
	if c == b {
		t.Fatal("custom field changes must invalidate stage 3 keys")
	}
}

func TestHighlightFingerprintTracksAbstract(t *testing.T) {
	a := HighlightFingerprint("p1", "abstract one", "m", "prompt", 0.3)
	b := HighlightFingerprint("p1", "abstract two", "m", "prompt", 0.3)
	if a == b {
		t.Fatal("revised abstract must be re-highlighted")
	}
	if a != HighlightFingerprint("p1", "abstract one", "m", "prompt", 0.3) {
		t.Fatal("highlight keys must be deterministic")
	}
}

func TestTruncateBacksOffToRuneBoundary(t *testing.T) {
	text := strings.Repeat("π", 10) // 2 bytes per rune

	got := truncate(text, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("π", 2) {
		t.Fatalf("truncate(5) = %q, want two runes", got)
	}

	if got := truncate("ascii only", 5); got != "ascii" {
		t.Fatalf("ascii truncation = %q", got)
	}
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("under-budget text must pass through, got %q", got)
	}
}
