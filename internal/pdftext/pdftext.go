// Package pdftext extracts plain text from PDF documents.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxChars caps extracted text to stay inside the model context window.
const maxChars = 50000

// Extract returns the plain text of all pages of a PDF document, capped at
// 50,000 characters. It does not enforce a minimum length; callers decide
// whether the result is substantial enough to process.
func Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var sb strings.Builder
	totalPages := reader.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages that cannot be decoded are skipped; the rest of the
			// document may still carry enough text to extract from.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")

		if sb.Len() > maxChars {
			break
		}
	}

	result := sb.String()
	if len(result) > maxChars {
		result = result[:maxChars]
	}

	return result, nil
}
