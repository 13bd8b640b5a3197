// Package memory provides an in-memory implementation of driven.VectorStore.
// It serves brute-force cosine similarity for the vector path and an
// in-process BM25 index for the keyword path. Intended for tests and
// small corpora.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/quarrydocs/quarry/internal/core/domain"
	"github.com/quarrydocs/quarry/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// BM25 parameters (standard defaults).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// entry is a stored point plus its precomputed lexical statistics.
type entry struct {
	point     driven.Point
	termFreqs map[string]int
	length    int
}

// Store is an in-memory implementation of driven.VectorStore.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	docFreqs map[string]int
	totalLen int
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]*entry),
		docFreqs: make(map[string]int),
	}
}

// Upsert stores or replaces points. A point without an ID is assigned one.
func (s *Store) Upsert(_ context.Context, points []driven.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if old, ok := s.entries[p.ID]; ok {
			s.removeStats(old)
		}

		e := &entry{point: p, termFreqs: make(map[string]int)}
		for _, term := range tokenize(p.Payload.Title + " " + p.Payload.Content) {
			e.termFreqs[term]++
			e.length++
		}

		s.entries[p.ID] = e
		s.addStats(e)
	}
	return nil
}

// Delete removes a point. Deleting an unknown ID is a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		s.removeStats(e)
		delete(s.entries, id)
	}
	return nil
}

// VectorSearch returns the nearest neighbours by cosine similarity.
func (s *Store) VectorSearch(
	ctx context.Context, vector []float32, filter domain.FilterExpr, limit int,
) ([]driven.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(vector) == 0 {
		return []driven.ScoredPoint{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]driven.ScoredPoint, 0, len(s.entries))
	for id, e := range s.entries {
		if !filter.Matches(e.point.Payload.ProjectID) {
			continue
		}
		if len(e.point.Vector) != len(vector) {
			continue
		}
		hits = append(hits, driven.ScoredPoint{
			ID:      id,
			Score:   cosineSimilarity(vector, e.point.Vector),
			Payload: e.point.Payload,
		})
	}

	sortHits(hits)
	return truncate(hits, limit), nil
}

// KeywordSearch returns BM25 matches for the terms. Zero terms or zero
// matches yield an empty result, not an error.
func (s *Store) KeywordSearch(
	ctx context.Context, terms []string, filter domain.FilterExpr, limit int,
) ([]driven.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || len(terms) == 0 {
		return []driven.ScoredPoint{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if n == 0 {
		return []driven.ScoredPoint{}, nil
	}
	avgLen := float64(s.totalLen) / float64(n)

	var hits []driven.ScoredPoint
	for id, e := range s.entries {
		if !filter.Matches(e.point.Payload.ProjectID) {
			continue
		}

		score := 0.0
		for _, term := range terms {
			tf := e.termFreqs[strings.ToLower(term)]
			if tf == 0 {
				continue
			}
			df := s.docFreqs[strings.ToLower(term)]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			norm := 1 - bm25B + bm25B*float64(e.length)/avgLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, driven.ScoredPoint{
				ID:      id,
				Score:   score,
				Payload: e.point.Payload,
			})
		}
	}

	sortHits(hits)
	return truncate(hits, limit), nil
}

// Count returns the number of stored points.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// addStats folds an entry into the corpus statistics (caller holds lock).
func (s *Store) addStats(e *entry) {
	for term := range e.termFreqs {
		s.docFreqs[term]++
	}
	s.totalLen += e.length
}

// removeStats removes an entry from the corpus statistics (caller holds lock).
func (s *Store) removeStats(e *entry) {
	for term := range e.termFreqs {
		if s.docFreqs[term] <= 1 {
			delete(s.docFreqs, term)
		} else {
			s.docFreqs[term]--
		}
	}
	s.totalLen -= e.length
}

// sortHits orders hits by score descending, then ID ascending for
// deterministic results.
func sortHits(hits []driven.ScoredPoint) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func truncate(hits []driven.ScoredPoint, limit int) []driven.ScoredPoint {
	if hits == nil {
		return []driven.ScoredPoint{}
	}
	if len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

// cosineSimilarity computes the cosine of the angle between two vectors
// of equal length. Zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenize lowercases and splits text into index terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') ||
			r > 127)
	})
}
