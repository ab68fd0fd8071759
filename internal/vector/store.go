package vector

import (
	"context"
	"fmt"
	"math"
	"strings"

	"medibot/internal/models"
	"medibot/internal/rag"

	"github.com/jackc/pgx/v5"
)

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store runs similarity queries against the pgvector-backed chunks table.
type Store struct {
	q   Queryer
	dim int
}

func NewStore(q Queryer, dim int) *Store {
	return &Store{q: q, dim: dim}
}

// Search returns the topK nearest chunks in a knowledge base, ordered by
// descending cosine similarity. Equal distances fall back to insertion
// order (seq) so repeated queries return a stable ranking.
func (s *Store) Search(ctx context.Context, kbID string, queryVec []float32, topK int) ([]models.ChunkMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	if s.dim > 0 && len(queryVec) != s.dim {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(queryVec), s.dim)
	}
	vecLiteral := ToLiteral(queryVec)

	query := `
SELECT c.chunk_id,
       c.doc_id,
       d.filename,
       1 - (c.embedding <=> $2::vector) AS score,
       c.text,
       LEFT(c.text, 280) AS snippet
FROM chunks c
JOIN documents d ON d.doc_id = c.doc_id
WHERE c.kb_id = $1
  AND c.embedding IS NOT NULL
ORDER BY c.embedding <=> $2::vector, c.seq ASC
LIMIT $3`

	rows, err := s.q.Query(ctx, query, kbID, vecLiteral, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	results := make([]models.ChunkMatch, 0, topK)
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocID, &m.Filename, &m.Score, &m.Text, &m.Snippet); err != nil {
			return nil, fmt.Errorf("scan chunk match: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}
	return results, nil
}

// ToLiteral renders a vector in pgvector's input syntax.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// CosineSimilarity mirrors the `1 - (a <=> b)` score computed in SQL. Used
// by tests and the in-memory search path.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
