package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	DocumentType string `json:"documentType"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	Status       string `json:"status"`
}

// Query describes a search request. Results are always scoped to the owner.
type Query struct {
	Text         string
	OwnerID      string
	DocumentType string // empty = all types
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher executes a full-text search over documents.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer pushes documents into a search index.
type Indexer interface {
	IndexDocument(doc DocumentRecord) error
	DeleteDocument(id string) error
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	DocumentType string `json:"documentType"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Status       string `json:"status"`
}
