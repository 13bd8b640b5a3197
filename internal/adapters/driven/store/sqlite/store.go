// Package sqlite provides a SQLite-backed implementation of
// driven.VectorStore. Vectors are stored as little-endian float32
// blobs and scored with cosine similarity in Go; the keyword path is
// BM25 over a persisted term index.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

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

const schema = `
CREATE TABLE IF NOT EXISTS points (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL,
	vector      BLOB,
	token_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS terms (
	term     TEXT NOT NULL,
	point_id TEXT NOT NULL,
	freq     INTEGER NOT NULL,
	PRIMARY KEY (term, point_id)
);

CREATE INDEX IF NOT EXISTS idx_points_project_id ON points(project_id);
CREATE INDEX IF NOT EXISTS idx_terms_term ON terms(term);
`

// Store is a SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) a store at the given data directory.
// If dataDir is empty, defaults to ~/.quarry/data/points.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quarry", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "points.db")

	// WAL mode for concurrent readers during upserts.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Upsert stores or replaces points. A point without an ID is assigned one.
func (s *Store) Upsert(ctx context.Context, points []driven.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range points {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}

		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", p.ID, err)
		}

		freqs := termFrequencies(p.Payload.Title + " " + p.Payload.Content)
		tokenCount := 0
		for _, f := range freqs {
			tokenCount += f
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO points (id, project_id, payload, vector, token_count)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				project_id = excluded.project_id,
				payload = excluded.payload,
				vector = excluded.vector,
				token_count = excluded.token_count`,
			p.ID, p.Payload.ProjectID, string(payloadJSON), serializeVector(p.Vector), tokenCount)
		if err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM terms WHERE point_id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear terms %s: %w", p.ID, err)
		}
		for term, freq := range freqs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO terms (term, point_id, freq) VALUES (?, ?, ?)`,
				term, p.ID, freq)
			if err != nil {
				return fmt.Errorf("index term %q for %s: %w", term, p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Delete removes a point and its term index entries.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM terms WHERE point_id = ?`, id); err != nil {
		return fmt.Errorf("delete terms %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// VectorSearch scans stored vectors and ranks by cosine similarity.
func (s *Store) VectorSearch(
	ctx context.Context, vector []float32, filter domain.FilterExpr, limit int,
) ([]driven.ScoredPoint, error) {
	if limit <= 0 || len(vector) == 0 {
		return []driven.ScoredPoint{}, nil
	}

	clause, args := filterClause(filter)
	query := `SELECT id, payload, vector FROM points WHERE vector IS NOT NULL AND ` + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var hits []driven.ScoredPoint
	for rows.Next() {
		var (
			id          string
			payloadJSON string
			blob        []byte
		)
		if err := rows.Scan(&id, &payloadJSON, &blob); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}

		stored := deserializeVector(blob)
		if len(stored) != len(vector) {
			continue
		}

		payload, err := decodePayload(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", id, err)
		}

		hits = append(hits, driven.ScoredPoint{
			ID:      id,
			Score:   cosineSimilarity(vector, stored),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortHits(hits)
	return truncateHits(hits, limit), nil
}

// KeywordSearch ranks points matching any term with BM25.
func (s *Store) KeywordSearch(
	ctx context.Context, terms []string, filter domain.FilterExpr, limit int,
) ([]driven.ScoredPoint, error) {
	if limit <= 0 || len(terms) == 0 {
		return []driven.ScoredPoint{}, nil
	}

	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}
	if len(lowered) == 0 {
		return []driven.ScoredPoint{}, nil
	}

	var n int
	var totalTokens sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(token_count) FROM points`).Scan(&n, &totalTokens)
	if err != nil {
		return nil, fmt.Errorf("corpus stats: %w", err)
	}
	if n == 0 {
		return []driven.ScoredPoint{}, nil
	}
	avgLen := float64(totalTokens.Int64) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	docFreqs, err := s.documentFrequencies(ctx, lowered)
	if err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(lowered))
	placeholders = placeholders[:len(placeholders)-1]
	clause, filterArgs := filterClause(filter)

	query := fmt.Sprintf(`
		SELECT p.id, p.payload, p.token_count, t.term, t.freq
		FROM terms t
		JOIN points p ON p.id = t.point_id
		WHERE t.term IN (%s) AND %s`, placeholders, clause)

	args := make([]any, 0, len(lowered)+len(filterArgs))
	for _, t := range lowered {
		args = append(args, t)
	}
	args = append(args, filterArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	type accum struct {
		score   float64
		payload driven.Payload
	}
	scores := make(map[string]*accum)

	for rows.Next() {
		var (
			id          string
			payloadJSON string
			tokenCount  int
			term        string
			freq        int
		)
		if err := rows.Scan(&id, &payloadJSON, &tokenCount, &term, &freq); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}

		a, ok := scores[id]
		if !ok {
			payload, err := decodePayload(payloadJSON)
			if err != nil {
				return nil, fmt.Errorf("decode payload %s: %w", id, err)
			}
			a = &accum{payload: payload}
			scores[id] = a
		}

		df := docFreqs[term]
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		norm := 1 - bm25B + bm25B*float64(tokenCount)/avgLen
		a.score += idf * float64(freq) * (bm25K1 + 1) / (float64(freq) + bm25K1*norm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hits := make([]driven.ScoredPoint, 0, len(scores))
	for id, a := range scores {
		hits = append(hits, driven.ScoredPoint{ID: id, Score: a.score, Payload: a.payload})
	}

	sortHits(hits)
	return truncateHits(hits, limit), nil
}

// Count returns the number of stored points.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// documentFrequencies returns how many points contain each term.
func (s *Store) documentFrequencies(ctx context.Context, terms []string) (map[string]int, error) {
	placeholders := strings.Repeat("?,", len(terms))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(terms))
	for i, t := range terms {
		args[i] = t
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT term, COUNT(*) FROM terms WHERE term IN (%s) GROUP BY term`, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("document frequencies: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	freqs := make(map[string]int, len(terms))
	for rows.Next() {
		var term string
		var count int
		if err := rows.Scan(&term, &count); err != nil {
			return nil, fmt.Errorf("scan term frequency: %w", err)
		}
		freqs[term] = count
	}
	return freqs, rows.Err()
}

// filterClause translates a FilterExpr into SQL over the project_id column.
func filterClause(filter domain.FilterExpr) (string, []any) {
	switch filter.Op {
	case domain.FilterOpEq:
		return "project_id = ?", []any{filter.Values[0]}
	case domain.FilterOpIn:
		placeholders := strings.Repeat("?,", len(filter.Values))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(filter.Values))
		for i, v := range filter.Values {
			args[i] = v
		}
		return fmt.Sprintf("project_id IN (%s)", placeholders), args
	default:
		return "1=1", nil
	}
}

func decodePayload(payloadJSON string) (driven.Payload, error) {
	var payload driven.Payload
	err := json.Unmarshal([]byte(payloadJSON), &payload)
	return payload, err
}

// serializeVector encodes a vector as a little-endian float32 blob.
// Nil and empty vectors encode as nil so the column stays NULL.
func serializeVector(vector []float32) []byte {
	if len(vector) == 0 {
		return nil
	}
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector decodes a little-endian float32 blob.
func deserializeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// sortHits orders hits by score descending, then ID ascending.
func sortHits(hits []driven.ScoredPoint) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func truncateHits(hits []driven.ScoredPoint, limit int) []driven.ScoredPoint {
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

// termFrequencies tokenises text (lowercased, word runes only) into a
// term frequency map.
func termFrequencies(text string) map[string]int {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') ||
			r > 127)
	})

	freqs := make(map[string]int, len(fields))
	for _, f := range fields {
		freqs[f]++
	}
	return freqs
}
