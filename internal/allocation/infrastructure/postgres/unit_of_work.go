package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/application"
	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

// ErrVersionConflict means another transaction committed the same product
// since this scope loaded it. The whole use case should be retried.
var ErrVersionConflict = errors.New("product version conflict")

// UnitOfWork is one pgx transaction scope over Product aggregates. The
// transaction begins lazily on first repository use; Commit flushes every
// aggregate touched during the scope with an optimistic version check.
type UnitOfWork struct {
	log  *slog.Logger
	pool *pgxpool.Pool

	tx      pgx.Tx
	seen    []*domain.Product
	loaded  map[string]int
	created map[string]bool
}

func NewUnitOfWork(log *slog.Logger, pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{
		log:     log,
		pool:    pool,
		loaded:  make(map[string]int),
		created: make(map[string]bool),
	}
}

// Factory yields one fresh unit of work per request or message.
func Factory(log *slog.Logger, pool *pgxpool.Pool) application.UnitOfWorkFactory {
	return func() application.UnitOfWork {
		return NewUnitOfWork(log, pool)
	}
}

func (u *UnitOfWork) Products() application.ProductRepository {
	return &Repository{uow: u}
}

func (u *UnitOfWork) begin(ctx context.Context) (pgx.Tx, error) {
	if u.tx == nil {
		tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
		if err != nil {
			return nil, err
		}
		u.tx = tx
	}
	return u.tx, nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	if err := u.flush(ctx); err != nil {
		_ = u.tx.Rollback(ctx)
		u.tx = nil
		return err
	}
	err := u.tx.Commit(ctx)
	u.tx = nil
	return err
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx != nil {
		_ = u.tx.Rollback(ctx)
		u.tx = nil
	}
	return nil
}

// CollectNewEvents drains events recorded on every aggregate this scope has
// touched, committed or not: a rolled-back allocation still needs its
// OutOfStock event delivered.
func (u *UnitOfWork) CollectNewEvents() []domain.Event {
	var out []domain.Event
	for _, p := range u.seen {
		out = append(out, p.PullEvents()...)
	}
	return out
}

func (u *UnitOfWork) remember(p *domain.Product) {
	for _, s := range u.seen {
		if s == p {
			return
		}
	}
	u.seen = append(u.seen, p)
}

func (u *UnitOfWork) flush(ctx context.Context) error {
	for _, p := range u.seen {
		if u.created[p.SKU] {
			if _, err := u.tx.Exec(ctx,
				`INSERT INTO products (sku, version_number) VALUES ($1,$2)`,
				p.SKU, p.VersionNumber); err != nil {
				return err
			}
		} else {
			ct, err := u.tx.Exec(ctx,
				`UPDATE products SET version_number=$1 WHERE sku=$2 AND version_number=$3`,
				p.VersionNumber, p.SKU, u.loaded[p.SKU])
			if err != nil {
				return err
			}
			if ct.RowsAffected() == 0 {
				return ErrVersionConflict
			}
		}

		batch := &pgx.Batch{}
		for _, b := range p.Batches() {
			batch.Queue(`INSERT INTO batches (reference, sku, purchased_quantity, eta)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (reference) DO UPDATE SET purchased_quantity=$3, eta=$4`,
				b.Reference, b.SKU, b.PurchasedQuantity(), b.ETA)
			batch.Queue(`DELETE FROM allocations WHERE batch_reference=$1`, b.Reference)
			for i, line := range b.Allocations() {
				batch.Queue(`INSERT INTO allocations (batch_reference, order_id, sku, qty, position)
					VALUES ($1,$2,$3,$4,$5)`,
					b.Reference, line.OrderID, line.SKU, line.Qty, i)
			}
		}
		if err := u.tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return nil
}
