// Package export renders a document's conversation history as a PDF
// transcript.
package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/ppinheiro86/doctalk/internal/storage"
)

const (
	pageWidth  = 190 // usable width on A4 with default margins, in mm
	lineHeight = 5
)

// Transcript renders the document's extracted text and conversation history
// as a printable PDF and returns the raw bytes.
func Transcript(doc storage.Document, extractedText string, messages []storage.Message) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.FileName, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(pageWidth, 7, "Original file: "+doc.FileName, "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(pageWidth, lineHeight, fmt.Sprintf("Document uploaded %s, %d messages", doc.CreatedAt.Format("2006-01-02"), len(messages)), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if extractedText != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(pageWidth, 6, "Extracted text", "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(pageWidth, lineHeight, extractedText, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(pageWidth, 6, "Messages", "", "L", false)
	pdf.Ln(1)

	for _, m := range messages {
		pdf.SetFont("Helvetica", "B", 10)
		label := "You"
		if m.Role == storage.RoleAssistant {
			label = "Assistant"
		}
		pdf.MultiCell(pageWidth, lineHeight, fmt.Sprintf("%s  (%s)", label, m.CreatedAt.Format("2006-01-02 15:04")), "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(pageWidth, lineHeight, m.Content, "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering transcript: %w", err)
	}
	return buf.Bytes(), nil
}
