package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/dmitrymomot/billingcore/pkg/pg"
)

// Store is the PostgreSQL store. It is safe for concurrent use.
type Store struct {
	db pg.Querier
	sb sq.StatementBuilderType
}

func New(db pg.Querier) *Store {
	if db == nil {
		panic("postgres: db cannot be nil")
	}
	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (s *Store) conn(ctx context.Context) pg.Querier {
	return pg.Conn(ctx, s.db)
}
