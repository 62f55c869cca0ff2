package export

import (
	"bytes"
	"html/template"
	"sort"
	"strings"
	"time"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(documentTemplateHTML))

type templateData struct {
	Title            string
	DocumentType     string
	Author           string
	UpdatedAt        time.Time
	Metadata         []metadataEntry
	Paragraphs       []string
	GeneratedContent []string
}

type metadataEntry struct {
	Key   string
	Value string
}

// renderHTML builds the printable HTML page for a document. Content is plain
// text: blank lines delimit paragraphs, everything is escaped by the
// template engine.
func renderHTML(doc Document) (string, error) {
	data := templateData{
		Title:            doc.Title,
		DocumentType:     doc.DocumentType,
		Author:           doc.Author,
		UpdatedAt:        doc.UpdatedAt,
		Paragraphs:       splitParagraphs(doc.Content),
		GeneratedContent: splitParagraphs(doc.GeneratedContent),
	}
	for k, v := range doc.Metadata {
		data.Metadata = append(data.Metadata, metadataEntry{Key: k, Value: v})
	}
	sort.Slice(data.Metadata, func(i, j int) bool { return data.Metadata[i].Key < data.Metadata[j].Key })

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

const documentTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .fields { font-size: 0.9em; color: #444; margin-bottom: 1.5rem; }
    .fields dt { font-weight: bold; display: inline; }
    .fields dd { display: inline; margin: 0 1rem 0 0.25rem; }
    .generated { background: #f7f7f7; padding: 1rem; margin-top: 2rem; border-left: 3px solid #888; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.DocumentType}} | {{.Author}} | {{formatDate .UpdatedAt "Jan 2, 2006"}}</div>
  {{if .Metadata}}<dl class="fields">{{range .Metadata}}<dt>{{.Key}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
  {{range .Paragraphs}}<p>{{.}}</p>{{end}}
  {{if .GeneratedContent}}
  <div class="generated">
    <h2>Generated draft</h2>
    {{range .GeneratedContent}}<p>{{.}}</p>{{end}}
  </div>
  {{end}}
</body>
</html>`
