package arxiv

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// extractPDFText pulls plain text out of a PDF body. It is a rough
// extraction compared to the HTML path, used only when arXiv offers no
// HTML rendition.
func extractPDFText(raw []byte, maxChars int) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract plain text: %w", err)
	}

	var buf bytes.Buffer
	if maxChars > 0 {
		_, err = io.Copy(&buf, io.LimitReader(plain, int64(maxChars)))
	} else {
		_, err = io.Copy(&buf, plain)
	}
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	return normalizeWhitespace(buf.String()), nil
}
