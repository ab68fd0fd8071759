package storage

import (
	"context"
	"fmt"

	"medibot/internal/models"
)

type KBRepo struct {
	db *DB
}

func NewKBRepo(db *DB) *KBRepo {
	return &KBRepo{db: db}
}

func (r *KBRepo) CreateKB(ctx context.Context, kb models.KnowledgeBase) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO knowledge_bases (kb_id, name) VALUES ($1, $2)`, kb.KBID, kb.Name)
	if err != nil {
		return fmt.Errorf("insert knowledge base: %w", err)
	}
	return nil
}

func (r *KBRepo) GetKB(ctx context.Context, kbID string) (models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := r.db.Pool.QueryRow(ctx,
		`SELECT kb_id::text, name, created_at FROM knowledge_bases WHERE kb_id=$1::uuid`, kbID).
		Scan(&kb.KBID, &kb.Name, &kb.CreatedAt)
	if err != nil {
		return models.KnowledgeBase{}, fmt.Errorf("get knowledge base: %w", err)
	}
	return kb, nil
}

func (r *KBRepo) ListKBs(ctx context.Context) ([]models.KnowledgeBase, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT kb_id::text, name, created_at FROM knowledge_bases ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	defer rows.Close()

	out := make([]models.KnowledgeBase, 0)
	for rows.Next() {
		var kb models.KnowledgeBase
		if err := rows.Scan(&kb.KBID, &kb.Name, &kb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge base: %w", err)
		}
		out = append(out, kb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge bases: %w", err)
	}
	return out, nil
}
