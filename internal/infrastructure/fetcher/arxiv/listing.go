package arxiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
)

// Listing scrapes the daily "new submissions" page of one arXiv field.
// The announcement page is a single request, but it shares the
// politeness limiter with the crawler so the site never sees bursts.
type Listing struct {
	baseURL    string
	field      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type ListingConfig struct {
	BaseURL        string
	Field          string
	RequestsPerSec float64
	Timeout        time.Duration
}

func NewListing(cfg ListingConfig, limiter *rate.Limiter, logger *slog.Logger) *Listing {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://arxiv.org"
	}
	if cfg.Field == "" {
		cfg.Field = "cs"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if limiter == nil {
		perSec := cfg.RequestsPerSec
		if perSec <= 0 {
			perSec = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listing{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		field:      cfg.Field,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// ListPapers fetches and parses today's announcement page. Category
// filters match case-insensitively against the subject strings, e.g.
// "Computer Vision" matches "Computer Vision and Pattern Recognition
// (cs.CV)". maxResults <= 0 means no limit.
func (l *Listing) ListPapers(ctx context.Context, categories []string, maxResults int) ([]domain.Paper, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/list/%s/new", l.baseURL, l.field)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create listing request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listing status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	papers := l.parseListing(doc, categories, maxResults)
	l.logger.Info("arxiv_listing_fetched", "field", l.field, "papers", len(papers))
	return papers, nil
}

func (l *Listing) parseListing(doc *goquery.Document, categories []string, maxResults int) []domain.Paper {
	content := doc.Find("#content")
	announced := parseAnnounceDate(content.Find("h3").First().Text())

	var papers []domain.Paper
	entries := content.Find("dl dt")
	descriptions := content.Find("dl dd")
	if entries.Length() != descriptions.Length() {
		l.logger.Warn("arxiv_listing_malformed", "dt", entries.Length(), "dd", descriptions.Length())
		return nil
	}

	entries.EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := descriptions.Eq(i)

		href, ok := dt.Find(`a[title="Abstract"]`).Attr("href")
		if !ok {
			return true
		}
		parts := strings.Split(strings.TrimRight(href, "/"), "/")
		id := parts[len(parts)-1]
		if id == "" {
			return true
		}

		title := strings.TrimSpace(strings.TrimPrefix(
			strings.TrimSpace(dd.Find("div.list-title").Text()), "Title:"))
		if title == "" {
			return true
		}

		var authors []string
		dd.Find("div.list-authors a").Each(func(_ int, a *goquery.Selection) {
			if name := strings.TrimSpace(a.Text()); name != "" {
				authors = append(authors, name)
			}
		})

		subjects := strings.TrimSpace(strings.TrimPrefix(
			strings.TrimSpace(dd.Find("div.list-subjects").Text()), "Subjects:"))
		var paperCategories []string
		for _, s := range strings.Split(subjects, ";") {
			if s = strings.TrimSpace(s); s != "" {
				paperCategories = append(paperCategories, s)
			}
		}

		if !matchesAnyCategory(paperCategories, categories) {
			return true
		}

		papers = append(papers, domain.Paper{
			ID:         id,
			Title:      title,
			Authors:    authors,
			Categories: paperCategories,
			Abstract:   strings.TrimSpace(dd.Find("p.mathjax").Text()),
			AbsURL:     fmt.Sprintf("%s/abs/%s", l.baseURL, id),
			PDFURL:     fmt.Sprintf("%s/pdf/%s.pdf", l.baseURL, id),
			Published:  announced,
		})
		return maxResults <= 0 || len(papers) < maxResults
	})

	return papers
}

func matchesAnyCategory(paperCategories, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, filter := range filters {
		for _, category := range paperCategories {
			if strings.Contains(strings.ToLower(category), strings.ToLower(filter)) {
				return true
			}
		}
	}
	return false
}

// parseAnnounceDate extracts the announcement date from the page
// heading, e.g. "New submissions for Friday, 29 August 2025".
func parseAnnounceDate(heading string) time.Time {
	text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(heading), "New submissions for"))
	if idx := strings.Index(text, "("); idx > 0 {
		text = strings.TrimSpace(text[:idx])
	}
	if t, err := time.Parse("Monday, 2 January 2006", text); err == nil {
		return t
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}
