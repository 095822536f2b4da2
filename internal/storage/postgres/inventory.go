package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-orders/internal/domain/inventory"
	"github.com/xenking/kart-orders/internal/domain/product"
)

const (
	// The predicate is re-evaluated against the latest row version when a
	// concurrent writer commits first, so stock never goes negative.
	reserveStockSQL = `UPDATE products
		SET stock = stock - $2,
			status = CASE WHEN stock - $2 > 0 THEN 'Available' ELSE 'Sold Out' END
		WHERE id = $1 AND stock >= $2`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`
)

var _ inventory.Ledger = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Ledger on the products table.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Reserve decrements stock by quantity when enough units remain.
func (r *InventoryRepository) Reserve(ctx context.Context, productID int64, quantity int) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, reserveStockSQL, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("reserving %d of product %d: %w", quantity, productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stock returns the current stock of a product.
func (r *InventoryRepository) Stock(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := conn(ctx, r.pool).QueryRow(ctx, getStockSQL, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("getting stock of product %d: %w", productID, err)
	}
	return stock, nil
}
