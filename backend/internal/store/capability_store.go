package store

import (
	"context"
	"database/sql"
	"errors"
)

// CapabilityStore 编辑能力的权威来源：document_members 表。
// author 才有编辑能力，viewer 没有；查不到的一律按 viewer。
type CapabilityStore struct{ db *sql.DB }

func NewCapabilityStore(db *sql.DB) *CapabilityStore {
	return &CapabilityStore{db: db}
}

func (s *CapabilityStore) IsEditor(ctx context.Context, docID string, userID uint64) (bool, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM document_members WHERE doc_id = ? AND user_id = ?`,
		docID,
		userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return role == "author", nil
}
