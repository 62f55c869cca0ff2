// Package export renders documents to downloadable PDF and DOCX files.
package export

import (
	"errors"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Document carries everything the renderer needs for one export.
type Document struct {
	ID               string
	DocumentType     string
	Title            string
	Content          string
	Metadata         map[string]string
	GeneratedContent string
	Author           string
	UpdatedAt        time.Time
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates the headless browser is unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates pandoc is unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
