package export

import (
	"fmt"
)

// Service renders documents into downloadable files.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the document in the requested format.
func (s *Service) Export(doc Document, format Format) (*Result, error) {
	html, err := renderHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, doc.Title)
	case FormatDOCX:
		return exportDOCX(html, doc.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
