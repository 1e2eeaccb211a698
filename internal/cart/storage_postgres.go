package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxDB is satisfied by *pgxpool.Pool and pgxmock pools.
type pgxDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStorage keeps one visitor's storage in the cart_storage table.
type PostgresStorage struct {
	db        pgxDB
	sessionID string
}

// NewPostgresStorage scopes storage to sessionID.
func NewPostgresStorage(db pgxDB, sessionID string) *PostgresStorage {
	return &PostgresStorage{db: db, sessionID: sessionID}
}

// PostgresFactory builds per-session PostgresStorage values sharing db.
func PostgresFactory(db pgxDB) StorageFactory {
	return func(sessionID string) Storage {
		return NewPostgresStorage(db, sessionID)
	}
}

func (s *PostgresStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM cart_storage WHERE session_id = $1 AND key = $2`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cart: select %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStorage) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO cart_storage (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.sessionID, key, value)
	if err != nil {
		return fmt.Errorf("cart: upsert %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStorage) RemoveItem(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM cart_storage WHERE session_id = $1 AND key = $2`,
		s.sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("cart: delete %s: %w", key, err)
	}
	return nil
}

// PurgeIdle deletes rows of sessions not written for longer than idle.
func PurgeIdle(ctx context.Context, db pgxDB, idle time.Duration) (int64, error) {
	tag, err := db.Exec(ctx,
		`DELETE FROM cart_storage WHERE updated_at < $1`,
		time.Now().Add(-idle),
	)
	if err != nil {
		return 0, fmt.Errorf("cart: purge idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
