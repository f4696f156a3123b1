package arxiv

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Boilerplate stripped from the arXiv HTML rendition before text
// extraction. Equations are kept; their LaTeX source is inlined.
var (
	removeTags = []string{"script", "style", "nav", "header", "footer", "aside", "figure", "table"}

	removeClasses = []string{
		"ltx_bibliography",
		"ltx_ref",
		"ltx_cite",
		"ltx_tabular",
		"ltx_figure",
		"ltx_listing",
		"ltx_authors",
		"ltx_dates",
		"ltx_page_navbar",
		"ltx_TOC",
		"ltx_note",
	}

	spaceRuns   = regexp.MustCompile(` +`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// CleanHTML extracts readable text from an arXiv HTML paper: strips
// navigation, references, figures and tables, replaces rendered math
// with its LaTeX source, and caps the result at maxChars.
func CleanHTML(html string, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	for _, tag := range removeTags {
		doc.Find(tag).Remove()
	}
	for _, class := range removeClasses {
		doc.Find("." + class).Remove()
	}

	doc.Find("math").Each(func(_ int, m *goquery.Selection) {
		latex := strings.TrimSpace(m.Find(`annotation[encoding="application/x-tex"]`).Text())
		if latex != "" {
			m.ReplaceWithHtml(" $" + latex + "$ ")
		} else {
			m.ReplaceWithHtml(" ")
		}
	})

	content := doc.Find("div.ltx_page_content").First()
	if content.Length() == 0 {
		content = doc.Find("main").First()
	}
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		content = doc.Selection
	}

	text := normalizeWhitespace(content.Text())
	if maxChars > 0 && len(text) > maxChars {
		text = truncateText(text, maxChars)
	}
	return text, nil
}

// truncateText cuts at a byte budget without splitting a UTF-8 rune;
// papers are full of multi-byte math symbols.
func truncateText(text string, maxChars int) string {
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func normalizeWhitespace(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
