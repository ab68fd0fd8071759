package storage

import (
	"context"
	"fmt"
)

type ProviderCallRecord struct {
	CallID       string
	Operation    string
	KBID         string
	DocID        string
	ProviderName string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
}

// AuditRepo records every outbound provider call for later inspection.
type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, rec ProviderCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO provider_calls(call_id, operation, kb_id, doc_id, provider_name, model, request_id, status, error_type)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,'')::uuid, NULLIF($4,''), $5, $6, $7, $8, NULLIF($9,''))`,
		rec.CallID, rec.Operation, rec.KBID, rec.DocID, rec.ProviderName, rec.Model, rec.RequestID, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert provider call: %w", err)
	}
	return nil
}
