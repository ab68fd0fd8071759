package storage

import (
	"context"
	"fmt"

	"medibot/internal/models"
)

type ChunkRecord struct {
	ChunkID          string
	DocID            string
	KBID             string
	ChunkIndex       int
	WordStart        int
	WordEnd          int
	Text             string
	EmbeddingVersion string
	EmbeddingVector  *string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// UpsertChunks writes chunks idempotently: re-ingesting an unchanged document
// hits the same chunk IDs and leaves the index unchanged.
func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, doc_id, kb_id, chunk_index, word_start, word_end, text, embedding_version, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $9::text IS NULL THEN NULL ELSE $9::vector END)
ON CONFLICT (chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  word_start = EXCLUDED.word_start,
  word_end = EXCLUDED.word_end,
  embedding_version = EXCLUDED.embedding_version,
  embedding = COALESCE(EXCLUDED.embedding, chunks.embedding)`,
			c.ChunkID, c.DocID, c.KBID, c.ChunkIndex, c.WordStart, c.WordEnd, c.Text, c.EmbeddingVersion, c.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

// DeleteStaleChunks removes chunks of a document that are not in the given
// live set, e.g. after a shortened document was re-ingested.
func (r *ChunkRepo) DeleteStaleChunks(ctx context.Context, docID string, liveIDs []string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
DELETE FROM chunks WHERE doc_id=$1 AND NOT (chunk_id = ANY($2))`, docID, liveIDs)
	if err != nil {
		return 0, fmt.Errorf("delete stale chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChunkRepo) ListChunksByDocument(ctx context.Context, kbID, docID string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, doc_id, kb_id::text, chunk_index, word_start, word_end, text, embedding_version, created_at
FROM chunks
WHERE kb_id=$1::uuid AND doc_id=$2
ORDER BY chunk_index ASC`, kbID, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.KBID, &c.ChunkIndex, &c.WordStart, &c.WordEnd,
			&c.Text, &c.EmbeddingVersion, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk by document: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk by document: %w", err)
	}
	return out, nil
}

func (r *ChunkRepo) CountChunksByKB(ctx context.Context, kbID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE kb_id=$1::uuid`, kbID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
