package arxiv

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

const listingPage = `<!DOCTYPE html>
<html><body><div id="content">
<h3>New submissions for Friday, 29 August 2025</h3>
<dl>
<dt><a href="/abs/2508.10001" title="Abstract">arXiv:2508.10001</a></dt>
<dd>
  <div class="list-title">Title: Progressive Filtering at Scale</div>
  <div class="list-authors"><a href="#">Ada Lovelace</a>, <a href="#">Alan Turing</a></div>
  <div class="list-subjects">Subjects: Machine Learning (cs.LG); Artificial Intelligence (cs.AI)</div>
  <p class="mathjax">We study progressive filtering.</p>
</dd>
<dt><a href="/abs/2508.10002" title="Abstract">arXiv:2508.10002</a></dt>
<dd>
  <div class="list-title">Title: Databases Revisited</div>
  <div class="list-authors"><a href="#">Edgar Codd</a></div>
  <div class="list-subjects">Subjects: Databases (cs.DB)</div>
  <p class="mathjax">Relational things.</p>
</dd>
<dt><a href="/abs/2508.10003" title="Abstract">arXiv:2508.10003</a></dt>
<dd>
  <div class="list-title">Title: Vision Transformers Again</div>
  <div class="list-authors"><a href="#">Grace Hopper</a></div>
  <div class="list-subjects">Subjects: Computer Vision and Pattern Recognition (cs.CV)</div>
  <p class="mathjax">More transformers.</p>
</dd>
</dl>
</div></body></html>`

func testListing(t *testing.T, serverURL string) *Listing {
	t.Helper()
	return NewListing(ListingConfig{BaseURL: serverURL, Field: "cs"},
		rate.NewLimiter(rate.Inf, 1),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListPapersParsesListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list/cs/new" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	papers, err := testListing(t, server.URL).ListPapers(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("ListPapers: %v", err)
	}
	if len(papers) != 3 {
		t.Fatalf("got %d papers, want 3", len(papers))
	}

	p := papers[0]
	if p.ID != "2508.10001" {
		t.Errorf("id = %q", p.ID)
	}
	if p.Title != "Progressive Filtering at Scale" {
		t.Errorf("title = %q", p.Title)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "Ada Lovelace" {
		t.Errorf("authors = %v", p.Authors)
	}
	if len(p.Categories) != 2 || p.Categories[0] != "Machine Learning (cs.LG)" {
		t.Errorf("categories = %v", p.Categories)
	}
	if p.Abstract != "We study progressive filtering." {
		t.Errorf("abstract = %q", p.Abstract)
	}
	if p.AbsURL != server.URL+"/abs/2508.10001" || p.PDFURL != server.URL+"/pdf/2508.10001.pdf" {
		t.Errorf("urls = %q %q", p.AbsURL, p.PDFURL)
	}
	want := time.Date(2025, time.August, 29, 0, 0, 0, 0, time.UTC)
	if !p.Published.Equal(want) {
		t.Errorf("published = %v, want %v", p.Published, want)
	}
}

func TestListPapersFiltersByCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	papers, err := testListing(t, server.URL).ListPapers(context.Background(), []string{"computer vision"}, 0)
	if err != nil {
		t.Fatalf("ListPapers: %v", err)
	}
	if len(papers) != 1 || papers[0].ID != "2508.10003" {
		t.Fatalf("category filter failed: %+v", papers)
	}
}

func TestListPapersHonorsMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer server.Close()

	papers, err := testListing(t, server.URL).ListPapers(context.Background(), nil, 2)
	if err != nil {
		t.Fatalf("ListPapers: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}
}

func TestListPapersReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := testListing(t, server.URL).ListPapers(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseAnnounceDateFallsBack(t *testing.T) {
	got := parseAnnounceDate("not a date at all")
	if got.IsZero() {
		t.Fatal("fallback date must not be zero")
	}
}
