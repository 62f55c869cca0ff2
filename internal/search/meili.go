package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxDocuments = "draftdesk_documents"

const healthProbeInterval = 10 * time.Second

// Meili is the Meilisearch-backed search and indexing backend.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili dials Meilisearch and prepares the document index. An instance
// that is down at startup is tolerated: a background probe keeps checking
// and queries fall back to Postgres FTS until it comes back.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err == nil {
		m.healthy.Store(true)
		m.configureIndex()
	} else {
		log.Printf("search: cannot reach meilisearch at %s: %v", url, err)
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	_, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDocuments,
		PrimaryKey: "id",
	})
	if err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxDocuments, err)
	}

	index := m.client.Index(idxDocuments)
	filterable := []interface{}{"ownerId", "documentType", "status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: set filterable attributes on %s: %v", idxDocuments, err)
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: set searchable attributes on %s: %v", idxDocuments, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Meili) probe() {
	_, err := m.client.Health()
	recovered := err == nil && !m.healthy.Load()
	m.healthy.Store(err == nil)
	if recovered {
		log.Println("search: meilisearch is back, reapplying index settings")
		m.configureIndex()
	}
}

// Close stops the health probe goroutine.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether the last probe reached Meilisearch.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the document index. The owner filter is always applied so
// a user only ever sees their own documents.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch is down")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	filters := []string{fmt.Sprintf("ownerId = %q", q.OwnerID)}
	if q.DocumentType != "" {
		filters = append(filters, fmt.Sprintf("documentType = %q", q.DocumentType))
	}

	req := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		Filter:                filters,
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	resp, err := m.client.Index(idxDocuments).Search(q.Text, req)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:           hitString(hit, "id"),
		DocumentType: hitString(hit, "documentType"),
		Title:        coalesce(hitHighlight(hit, "title"), hitString(hit, "title")),
		Snippet:      coalesce(hitHighlight(hit, "content"), hitString(hit, "content")),
		Status:       hitString(hit, "status"),
	}
}

// hitString pulls a plain string field out of a raw hit.
func hitString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// hitHighlight pulls the highlighted variant of a field from _formatted.
func hitHighlight(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var fields map[string]string
	if json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	return strings.TrimSpace(fields[key])
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// IndexDocument adds or replaces one document in the index.
func (m *Meili) IndexDocument(doc DocumentRecord) error {
	_, err := m.client.Index(idxDocuments).AddDocuments([]DocumentRecord{doc}, nil)
	return err
}

// DeleteDocument drops one document from the index.
func (m *Meili) DeleteDocument(id string) error {
	_, err := m.client.Index(idxDocuments).DeleteDocument(id, nil)
	return err
}

// IndexDocuments bulk-loads documents, used by the startup reindex.
func (m *Meili) IndexDocuments(documents []DocumentRecord) error {
	if len(documents) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDocuments).AddDocuments(documents, nil)
	return err
}
