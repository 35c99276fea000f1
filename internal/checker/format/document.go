package format

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

var (
	pdfFiles = fileType{extensions: []string{"pdf"}, source: "PDF/Objects"}

	pdfJavaScript = regexp.MustCompile(`/(?:JavaScript|JS)\b`)
	pdfHeader     = []byte("%PDF-")
)

// PDFHasJavaScript flags documents whose object dictionaries reference
// JavaScript actions. Compressed object streams are not expanded.
var PDFHasJavaScript = fileCheck(assert.Meta{
	Name:        "format.pdf.has_javascript",
	Description: "OPEN when a PDF document embeds JavaScript.",
	Risk:        check.RiskMedium,
}, pdfFiles, "PDF document embeds JavaScript", "PDF document does not embed JavaScript",
	func(path string, data []byte) (bool, []string, error) {
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if !bytes.Contains(head, pdfHeader) {
			return false, nil, invalidFile(path, "PDF document", nil)
		}
		matches := pdfJavaScript.FindAllIndex(data, -1)
		if len(matches) == 0 {
			return false, nil, nil
		}
		return true, []string{fmt.Sprintf("javascript references: %d", len(matches))}, nil
	})
