package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/resilience"
)

// errNoHTMLVersion marks papers arXiv has no rendered HTML for. Old
// submissions and a minority of new ones only exist as PDF.
var errNoHTMLVersion = errors.New("no html version available")

// Crawler fetches paper full text for deep evaluation. It prefers the
// arXiv HTML rendition and falls back to extracting text from the PDF
// when no HTML exists.
type Crawler struct {
	baseURL     string
	httpClient  *http.Client
	executor    *resilience.Executor
	limiter     *rate.Limiter
	pdfFallback bool
	logger      *slog.Logger
}

type CrawlerConfig struct {
	BaseURL     string
	Timeout     time.Duration
	PDFFallback bool
}

func NewCrawler(cfg CrawlerConfig, executor *resilience.Executor, limiter *rate.Limiter, logger *slog.Logger) *Crawler {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://arxiv.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		executor:    executor,
		limiter:     limiter,
		pdfFallback: cfg.PDFFallback,
		logger:      logger,
	}
}

// FetchFullText returns cleaned paper text capped at maxChars.
func (c *Crawler) FetchFullText(ctx context.Context, paperID string, maxChars int) (string, error) {
	html, err := c.fetchHTML(ctx, paperID)
	if err == nil {
		text, cleanErr := CleanHTML(html, maxChars)
		if cleanErr != nil {
			return "", fmt.Errorf("clean html for %s: %w", paperID, cleanErr)
		}
		c.logger.Debug("full_text_fetched", "paper_id", paperID, "source", "html", "chars", len(text))
		return text, nil
	}
	if !errors.Is(err, errNoHTMLVersion) {
		return "", err
	}
	if !c.pdfFallback {
		return "", fmt.Errorf("paper %s: %w", paperID, errNoHTMLVersion)
	}

	c.logger.Info("falling_back_to_pdf", "paper_id", paperID)
	raw, err := c.fetchPDF(ctx, paperID)
	if err != nil {
		return "", err
	}
	text, err := extractPDFText(raw, maxChars)
	if err != nil {
		return "", fmt.Errorf("extract pdf text for %s: %w", paperID, err)
	}
	c.logger.Debug("full_text_fetched", "paper_id", paperID, "source", "pdf", "chars", len(text))
	return text, nil
}

func (c *Crawler) fetchHTML(ctx context.Context, paperID string) (string, error) {
	var html string
	err := c.executor.Execute(ctx, "fetch_html", func(ctx context.Context) error {
		body, err := c.get(ctx, fmt.Sprintf("%s/html/%s", c.baseURL, paperID))
		if err != nil {
			return err
		}
		html = body
		return nil
	}, classifyCrawlError)
	return html, err
}

func (c *Crawler) fetchPDF(ctx context.Context, paperID string) ([]byte, error) {
	var raw []byte
	err := c.executor.Execute(ctx, "fetch_pdf", func(ctx context.Context) error {
		body, err := c.get(ctx, fmt.Sprintf("%s/pdf/%s.pdf", c.baseURL, paperID))
		if err != nil {
			return err
		}
		raw = []byte(body)
		return nil
	}, classifyCrawlError)
	return raw, err
}

func (c *Crawler) get(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", url, err)
		}
		return string(body), nil
	case resp.StatusCode == http.StatusNotFound:
		return "", errNoHTMLVersion
	default:
		return "", &crawlStatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
}

type crawlStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *crawlStatusError) Error() string {
	return fmt.Sprintf("fetch %s status: %s", e.URL, e.Status)
}

func classifyCrawlError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, errNoHTMLVersion) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *crawlStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
