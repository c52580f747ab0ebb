package tx

import (
	"context"

	"github.com/avito-tech/go-transaction-manager/pgxv5"
	"github.com/avito-tech/go-transaction-manager/trm/manager"
	"github.com/avito-tech/go-transaction-manager/trm/settings"
	"github.com/jackc/pgx/v5"
)

// Manager runs a function inside a Postgres transaction carried by the context.
// Repositories pick the transaction up through pgxv5.DefaultCtxGetter (see pkg/querier).
type Manager struct {
	internal *manager.Manager
	level    pgx.TxIsoLevel
}

func New(db pgxv5.Transactional) *Manager {
	return &Manager{
		internal: manager.Must(pgxv5.NewDefaultFactory(db)),
		level:    pgx.Serializable,
	}
}

// WithIsoLevel overrides the default serializable isolation level.
func (m *Manager) WithIsoLevel(level pgx.TxIsoLevel) *Manager {
	m.level = level
	return m
}

func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	txSettings := pgxv5.MustSettings(
		settings.Must(),
		pgxv5.WithTxOptions(pgx.TxOptions{IsoLevel: m.level}),
	)
	return m.internal.DoWithSettings(ctx, txSettings, fn)
}

// Noop runs fn directly. Used with stores that have no transactions.
type Noop struct{}

func (Noop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
