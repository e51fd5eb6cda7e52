package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText is the local heuristic scan: it reads the PDF's embedded text
// layer directly, with no network dependency. Works only for text-based
// PDFs; scanned images yield nothing and fall through to rejection.
type PDFText struct{}

func NewPDFText() *PDFText { return &PDFText{} }

func (p *PDFText) Name() string { return "pdftext" }

func (p *PDFText) Extract(ctx context.Context, pdfBytes []byte) (*Result, error) {
	text, err := textLayer(pdfBytes)
	if err != nil {
		return nil, err
	}
	// Local scan is cheap but blind to layout, so it never claims more
	// than the heuristic score.
	return &Result{
		Text:       text,
		Confidence: heuristicConfidence(text),
	}, nil
}

// textLayer extracts the embedded text of every page. Pages that fail to
// render are skipped rather than failing the whole document.
func textLayer(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return buf.String(), nil
}
