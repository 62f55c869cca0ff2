package export

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Cover Letter v1.2", "My-Cover-Letter-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := splitParagraphs("First block.\n\nSecond block.\r\n\r\nThird.")
	if len(got) != 3 {
		t.Fatalf("paragraphs = %v, want 3 blocks", got)
	}
	if got[1] != "Second block." {
		t.Fatalf("second paragraph = %q", got[1])
	}
	if out := splitParagraphs("   \n\n  "); len(out) != 0 {
		t.Fatalf("blank input produced %v", out)
	}
}

func TestRenderHTML(t *testing.T) {
	doc := Document{
		ID:           "doc_1",
		DocumentType: "cover-letter",
		Title:        "Application",
		Content:      "Dear team,\n\nI am writing to apply.",
		Metadata:     map[string]string{"company": "Acme", "role": "Engineer"},
		GeneratedContent: "Suggested opening paragraph.",
		Author:       "Avery",
		UpdatedAt:    time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	html, err := renderHTML(doc)
	if err != nil {
		t.Fatalf("renderHTML() error = %v", err)
	}

	for _, want := range []string{
		"Application",
		"cover-letter",
		"Avery",
		"Mar 14, 2026",
		"<p>Dear team,</p>",
		"<p>I am writing to apply.</p>",
		"Acme",
		"Suggested opening paragraph.",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestRenderHTMLEscapesUserContent(t *testing.T) {
	doc := Document{
		Title:     "<script>alert(1)</script>",
		Content:   "body with <b>markup</b>",
		UpdatedAt: time.Now(),
	}
	html, err := renderHTML(doc)
	if err != nil {
		t.Fatalf("renderHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("title rendered unescaped")
	}
	if strings.Contains(html, "<b>markup</b>") {
		t.Error("content rendered unescaped")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService()
	_, err := svc.Export(Document{Title: "x", UpdatedAt: time.Now()}, Format("odt"))
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("err = %v, want unsupported format", err)
	}
}
