package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mind-engage/placement-exam/internal/db"
)

// SQLStore keeps each collection as ordered rows of the records table.
// SaveAll swaps a kind's rows inside one transaction.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(h *sql.DB) *SQLStore {
	return &SQLStore{db: h}
}

func (s *SQLStore) LoadAll(ctx context.Context, kind Kind) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records WHERE kind=$1 ORDER BY seq`, string(kind))
	if err != nil {
		return nil, unavailable("load", kind, err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, unavailable("load", kind, err)
		}
		out = append(out, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load", kind, err)
	}
	return out, nil
}

func (s *SQLStore) SaveAll(ctx context.Context, kind Kind, recs []json.RawMessage) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind=$1`, string(kind)); err != nil {
			return err
		}
		for i, r := range recs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO records (kind,seq,data) VALUES ($1,$2,$3)`,
				string(kind), i, string(r)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("save", kind, err)
	}
	return nil
}

// AdvisoryFence is a Fence over postgres session advisory locks. Each
// Acquire pins one pooled connection until release.
type AdvisoryFence struct {
	db *sql.DB
}

func NewAdvisoryFence(h *sql.DB) *AdvisoryFence {
	return &AdvisoryFence{db: h}
}

func (f *AdvisoryFence) Acquire(ctx context.Context, kind Kind) (func(), error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	key := advisoryKey(kind)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		conn.Close()
		return nil, err
	}
	return func() {
		// Unlock must run even when the caller's ctx is already done.
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(uctx, `SELECT pg_advisory_unlock($1)`, key)
		conn.Close()
	}, nil
}

func advisoryKey(kind Kind) int64 {
	return int64(xxhash.Sum64String("placement-exam/records/" + string(kind)))
}
