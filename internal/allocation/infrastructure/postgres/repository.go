package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/Stock-Allocation-Service/internal/allocation/domain"
)

// Repository reads Product aggregates inside its owning unit-of-work's
// transaction. Writes happen at Commit, when the unit of work flushes every
// aggregate it has seen.
type Repository struct {
	uow *UnitOfWork
}

func (r *Repository) Add(ctx context.Context, p *domain.Product) error {
	if _, err := r.uow.begin(ctx); err != nil {
		return err
	}
	r.uow.created[p.SKU] = true
	r.uow.remember(p)
	return nil
}

func (r *Repository) Get(ctx context.Context, sku string) (*domain.Product, error) {
	tx, err := r.uow.begin(ctx)
	if err != nil {
		return nil, err
	}

	var version int
	err = tx.QueryRow(ctx, `SELECT version_number FROM products WHERE sku=$1`, sku).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	batches, err := r.loadBatches(ctx, tx, sku)
	if err != nil {
		return nil, err
	}

	product := domain.NewProduct(sku, batches...)
	product.VersionNumber = version
	r.uow.loaded[sku] = version
	r.uow.remember(product)
	return product, nil
}

func (r *Repository) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error) {
	tx, err := r.uow.begin(ctx)
	if err != nil {
		return nil, err
	}

	var sku string
	err = tx.QueryRow(ctx, `SELECT sku FROM batches WHERE reference=$1`, ref).Scan(&sku)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, sku)
}

func (r *Repository) loadBatches(ctx context.Context, tx pgx.Tx, sku string) ([]*domain.Batch, error) {
	rows, err := tx.Query(ctx,
		`SELECT reference, purchased_quantity, eta FROM batches WHERE sku=$1 ORDER BY reference`, sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type batchRow struct {
		ref string
		qty int
		eta *time.Time
	}
	var batchRows []batchRow
	for rows.Next() {
		var br batchRow
		if err := rows.Scan(&br.ref, &br.qty, &br.eta); err != nil {
			return nil, err
		}
		batchRows = append(batchRows, br)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines := make(map[string][]domain.OrderLine)
	lineRows, err := tx.Query(ctx, `
		SELECT a.batch_reference, a.order_id, a.sku, a.qty
		FROM allocations a
		JOIN batches b ON b.reference = a.batch_reference
		WHERE b.sku=$1
		ORDER BY a.batch_reference, a.position`, sku)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var ref, orderID, lineSKU string
		var qty int
		if err := lineRows.Scan(&ref, &orderID, &lineSKU, &qty); err != nil {
			return nil, err
		}
		lines[ref] = append(lines[ref], domain.NewOrderLine(orderID, lineSKU, qty))
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	batches := make([]*domain.Batch, 0, len(batchRows))
	for _, br := range batchRows {
		batches = append(batches, domain.RestoreBatch(br.ref, sku, br.qty, br.eta, lines[br.ref]))
	}
	return batches, nil
}
