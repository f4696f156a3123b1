package arxiv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/resilience"
)

const paperHTML = `<!DOCTYPE html>
<html><body>
<div class="ltx_page_navbar">skip this nav</div>
<div class="ltx_page_content">
  <div class="ltx_authors">Anonymous Author</div>
  <section class="ltx_section">
    <h2>Introduction</h2>
    <p>We propose a method with loss
      <math><annotation encoding="application/x-tex">L = \sum_i x_i</annotation></math>
      over the batch.</p>
    <figure>a figure caption to drop</figure>
  </section>
  <div class="ltx_bibliography">[1] Some Reference</div>
</div>
<script>console.log("tracking")</script>
</body></html>`

func testCrawler(serverURL string, pdfFallback bool) *Crawler {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	})
	return NewCrawler(
		CrawlerConfig{BaseURL: serverURL, PDFFallback: pdfFallback},
		executor,
		rate.NewLimiter(rate.Inf, 1),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestFetchFullTextCleansHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html/2508.10001" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(paperHTML))
	}))
	defer server.Close()

	text, err := testCrawler(server.URL, false).FetchFullText(context.Background(), "2508.10001", 8000)
	if err != nil {
		t.Fatalf("FetchFullText: %v", err)
	}

	if !strings.Contains(text, "We propose a method") {
		t.Fatalf("body text missing: %q", text)
	}
	if !strings.Contains(text, `$L = \sum_i x_i$`) {
		t.Fatalf("latex source not inlined: %q", text)
	}
	for _, dropped := range []string{"skip this nav", "Anonymous Author", "Some Reference", "a figure caption", "tracking"} {
		if strings.Contains(text, dropped) {
			t.Errorf("boilerplate %q not removed", dropped)
		}
	}
}

func TestFetchFullTextCapsLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="ltx_page_content"><p>` +
			strings.Repeat("word ", 1000) + `</p></div></body></html>`))
	}))
	defer server.Close()

	text, err := testCrawler(server.URL, false).FetchFullText(context.Background(), "x", 100)
	if err != nil {
		t.Fatalf("FetchFullText: %v", err)
	}
	if len(text) > 100 {
		t.Fatalf("text length %d exceeds cap", len(text))
	}
}

func TestFetchFullTextCapKeepsRunesWhole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="ltx_page_content"><p>` +
			strings.Repeat("αβγδ", 200) + `</p></div></body></html>`))
	}))
	defer server.Close()

	// 101 bytes lands in the middle of a 2-byte Greek letter.
	text, err := testCrawler(server.URL, false).FetchFullText(context.Background(), "x", 101)
	if err != nil {
		t.Fatalf("FetchFullText: %v", err)
	}
	if len(text) > 101 {
		t.Fatalf("text length %d exceeds cap", len(text))
	}
	if !utf8.ValidString(text) {
		t.Fatalf("cap split a rune: %q", text)
	}
}

func TestFetchFullTextRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(paperHTML))
	}))
	defer server.Close()

	if _, err := testCrawler(server.URL, false).FetchFullText(context.Background(), "x", 0); err != nil {
		t.Fatalf("FetchFullText: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestFetchFullTextNoHTMLWithoutFallback(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testCrawler(server.URL, false).FetchFullText(context.Background(), "x", 0)
	if !errors.Is(err, errNoHTMLVersion) {
		t.Fatalf("err = %v, want errNoHTMLVersion", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d calls", calls.Load())
	}
}

func TestFetchFullTextFallsBackToPDF(t *testing.T) {
	var pdfRequested atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/pdf/") {
			pdfRequested.Store(true)
			// Not a valid PDF; the extraction error proves the
			// fallback path was taken.
			_, _ = w.Write([]byte("%PDF-garbage"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testCrawler(server.URL, true).FetchFullText(context.Background(), "x", 0)
	if err == nil {
		t.Fatal("expected pdf extraction error")
	}
	if !pdfRequested.Load() {
		t.Fatal("pdf fallback never requested")
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "a    b\n\n\n\n  c  \n"
	want := "a b\n\nc"
	if got := normalizeWhitespace(in); got != want {
		t.Fatalf("normalizeWhitespace = %q, want %q", got, want)
	}
}
