package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Collection names mirror the mobile client's document layout: one document
// per user in each collection, keyed by the authenticated user id.
const (
	CollectionUsers          = "users"
	CollectionLifestyle      = "lifestyle"
	CollectionMedicalHistory = "medicalHistory"
	CollectionTips           = "tips"
)

// DocumentStore is a thin keyed JSON document layer over Postgres.
// Payloads are stored as jsonb and returned verbatim; no schema is enforced,
// fields may be absent and documents may be missing entirely (new users).
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// Get fetches a single document by collection and id.
// A missing document is a valid state and returns (nil, nil), not an error.
func (s *DocumentStore) Get(ctx context.Context, collection, docID string) (json.RawMessage, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`,
		collection, docID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collection, docID, err)
	}
	return json.RawMessage(data), nil
}

// Put writes a document unconditionally, overwriting any existing payload
// for the same key. Last write wins; each user's documents are single-writer
// so no optimistic concurrency check is needed.
func (s *DocumentStore) Put(ctx context.Context, collection, docID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, docID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, doc_id, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, doc_id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, docID, data,
	)
	if err != nil {
		return fmt.Errorf("put document %s/%s: %w", collection, docID, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, docID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND doc_id = $2`,
		collection, docID,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, docID, err)
	}
	return nil
}
