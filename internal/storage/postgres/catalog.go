package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-orders/internal/domain/product"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name, description, category, price, stock, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
			price = EXCLUDED.price, stock = EXCLUDED.stock, status = EXCLUDED.status`

	deleteProductImagesSQL = `DELETE FROM product_images WHERE product_id = $1`

	createProductImageSQL = `INSERT INTO product_images (product_id, image_ref, position) VALUES ($1, $2, $3)`

	// Explicit ids bypass the sequence; realign it after seeding.
	syncProductSequenceSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
		GREATEST((SELECT COALESCE(MAX(id), 0) FROM products), 1))`
)

// CatalogRepository writes catalog rows. The order core only reads the
// catalog; this is used by seeding and tests.
type CatalogRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool, tx: NewTxManager(pool)}
}

// Upsert stores a product with its stock and replaces its images. Status is
// derived from stock.
func (r *CatalogRepository) Upsert(ctx context.Context, p product.Product) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)

		_, err := q.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Category, p.Price, p.Stock, string(product.StatusForStock(p.Stock)),
		)
		if err != nil {
			return fmt.Errorf("upserting product %d: %w", p.ID, err)
		}

		if _, err := q.Exec(ctx, deleteProductImagesSQL, p.ID); err != nil {
			return fmt.Errorf("clearing images of product %d: %w", p.ID, err)
		}
		if len(p.Images) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, img := range p.Images {
			batch.Queue(createProductImageSQL, p.ID, img.Ref, img.Position)
		}
		if err := q.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("creating images of product %d: %w", p.ID, err)
		}
		return nil
	})
}

// SyncSequence moves the product id sequence past the highest stored id.
func (r *CatalogRepository) SyncSequence(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, syncProductSequenceSQL); err != nil {
		return fmt.Errorf("syncing product sequence: %w", err)
	}
	return nil
}
