package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// SourceExtractor turns uploaded files into the plain text that gets
// attached as source content. Plain text passes through unchanged.
type SourceExtractor struct{}

func NewSourceExtractor() *SourceExtractor {
	return &SourceExtractor{}
}

// Extract picks an extraction method from the filename extension.
// Unsupported or unreadable files fail with ValidationFailed so the
// upload surface can reject them before anything is persisted.
func (e *SourceExtractor) Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractPDF(data)
	case ".html", ".htm":
		return e.extractHTML(data)
	case ".xlsx":
		return e.extractXLSX(data)
	case ".txt", ".md", "":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrValidation, filepath.Ext(filename))
	}
}

func (e *SourceExtractor) extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable PDF: %v", ErrValidation, err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("%w: PDF contains no extractable text", ErrValidation)
	}
	return out, nil
}

func (e *SourceExtractor) extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable HTML: %v", ErrValidation, err)
	}

	doc.Find("script, style, noscript").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		if text := strings.TrimSpace(doc.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	if len(paragraphs) == 0 {
		return "", fmt.Errorf("%w: HTML contains no text", ErrValidation)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func (e *SourceExtractor) extractXLSX(data []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable spreadsheet: %v", ErrValidation, err)
	}
	defer file.Close()

	var sb strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			continue
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("%w: spreadsheet contains no data", ErrValidation)
	}
	return out, nil
}
