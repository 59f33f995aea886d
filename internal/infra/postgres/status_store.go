// Package postgres mirrors job outcomes into the posts table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"actionrunner/internal/config"
	"actionrunner/internal/domain"
	"actionrunner/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var _ ports.StatusStore = (*StatusStore)(nil)

// DBPool is the subset of *pgxpool.Pool the store needs.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type StatusStore struct {
	pool   DBPool
	update string
	close  func()
}

// New connects to cfg.DSN and verifies the connection.
func New(ctx context.Context, cfg config.Postgres) (*StatusStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	s, err := NewWithPool(ctx, pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close
	log.Info().Str("table", cfg.Table).Msg("status store connected")
	return s, nil
}

func NewWithPool(ctx context.Context, pool DBPool, table string) (*StatusStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &StatusStore{pool: pool, update: updateSQL(table)}, nil
}

func updateSQL(table string) string {
	return fmt.Sprintf(`UPDATE %s SET status = $1::text, published_at = CASE WHEN $1::text = 'published' THEN now() ELSE published_at END WHERE id = $2`,
		pgx.Identifier{table}.Sanitize())
}

// SetStatus updates the row keyed by correlationID. An unknown id is an error.
func (s *StatusStore) SetStatus(ctx context.Context, correlationID string, status domain.JobStatus) error {
	if correlationID == "" {
		return errors.New("empty correlation id")
	}
	tag, err := s.pool.Exec(ctx, s.update, string(status), correlationID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUpdateFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no row with id %s", domain.ErrStoreUpdateFailed, correlationID)
	}
	return nil
}

func (s *StatusStore) Close() {
	if s.close != nil {
		s.close()
	}
}
