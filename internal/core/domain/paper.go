package domain

import "time"

// Paper is an immutable snapshot of an arXiv submission as seen in the
// daily listing. Identity is the arXiv ID; uniqueness is enforced per run.
type Paper struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Authors    []string  `json:"authors"`
	Categories []string  `json:"categories"`
	Abstract   string    `json:"abstract"`
	AbsURL     string    `json:"abs_url"`
	PDFURL     string    `json:"pdf_url"`
	Published  time.Time `json:"published"`
}
