package search

import (
	"context"
	"log"
)

// Service fronts two backends: Meilisearch when it is reachable, and
// Postgres full-text search as the always-available fallback.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService wires the backends together. A nil meili disables the primary
// backend entirely and every query goes to Postgres.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

func (s *Service) meiliUp() bool {
	return s.meili != nil && s.meili.Healthy()
}

func (s *Service) Search(q Query) Response {
	if s.meiliUp() {
		if hits, total, err := s.meili.Search(q); err == nil {
			return response(q, hits, total)
		} else {
			log.Printf("search: primary backend failed, using pgfts: %v", err)
		}
	}

	hits, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: fallback query failed: %v", err)
		return response(q, nil, 0)
	}
	return response(q, hits, total)
}

// IndexDocument pushes one document to the index in the background. Saves
// must not wait on the search backend.
func (s *Service) IndexDocument(doc DocumentRecord) {
	if !s.meiliUp() {
		return
	}
	go func() {
		if err := s.meili.IndexDocument(doc); err != nil {
			log.Printf("search: indexing %s failed: %v", doc.ID, err)
		}
	}()
}

// DeleteDocument removes one document from the index in the background.
func (s *Service) DeleteDocument(id string) {
	if !s.meiliUp() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocument(id); err != nil {
			log.Printf("search: removing %s from index failed: %v", id, err)
		}
	}()
}

// ReindexAllFromPG rebuilds the Meilisearch index from Postgres. Run once
// at startup so the index survives a wiped Meilisearch volume.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.meiliUp() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex aborted, cannot load records: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexDocuments(records); err != nil {
		log.Printf("search: reindex push failed: %v", err)
	}
}

func response(q Query, hits []Result, total int) Response {
	if hits == nil {
		hits = []Result{}
	}
	return Response{Results: hits, Total: total, Query: q.Text}
}
