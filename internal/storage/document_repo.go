package storage

import (
	"context"
	"fmt"

	"medibot/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// UpsertDocument registers a document, resetting it to pending when the same
// file is uploaded again.
func (r *DocumentRepo) UpsertDocument(ctx context.Context, doc models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (doc_id, kb_id, filename, format, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (doc_id)
DO UPDATE SET
  filename = EXCLUDED.filename,
  format = EXCLUDED.format,
  status = EXCLUDED.status,
  fail_reason = NULL,
  updated_at = now()`,
		doc.DocID, doc.KBID, doc.Filename, doc.Format, doc.Status)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, docID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET status=$2, fail_reason=NULLIF($3,''), updated_at=now()
WHERE doc_id=$1`, docID, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) SetChunkCount(ctx context.Context, docID string, n int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET chunk_count=$2, updated_at=now() WHERE doc_id=$1`, docID, n)
	if err != nil {
		return fmt.Errorf("set chunk count: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, docID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT doc_id, kb_id::text, filename, COALESCE(format,''), status, chunk_count,
       COALESCE(fail_reason,''), created_at, updated_at
FROM documents WHERE doc_id=$1`, docID).
		Scan(&d.DocID, &d.KBID, &d.Filename, &d.Format, &d.Status, &d.ChunkCount,
			&d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context, kbID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT doc_id, kb_id::text, filename, COALESCE(format,''), status, chunk_count,
       COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE kb_id=$1::uuid
ORDER BY created_at ASC`, kbID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocID, &d.KBID, &d.Filename, &d.Format, &d.Status, &d.ChunkCount,
			&d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
