package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-orders/internal/domain/product"
	"github.com/xenking/kart-orders/internal/domain/returns"
)

const (
	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	orderProductIDsSQL = `SELECT product_id FROM order_lines WHERE order_id = $1 ORDER BY id`

	createReturnSQL = `INSERT INTO return_requests
		(order_id, product_id, name, email, phone, reason, condition, comment, image_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	setReturnStatusSQL = `UPDATE return_requests SET status = $2 WHERE id = $1`

	returnColumns = `id, order_id, product_id, name, email, phone, reason, condition,
			comment, image_ref, status, created_at`

	listReturnsSQL = `SELECT ` + returnColumns + `
		FROM return_requests
		ORDER BY created_at DESC, id DESC`

	listOrderReturnsSQL = `SELECT ` + returnColumns + `
		FROM return_requests
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC`

	orderProductsSQL = `SELECT p.id, p.name, p.description, p.category, p.price, p.stock, p.status,
			SUM(l.quantity)::int
		FROM order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = $1
		GROUP BY p.id
		ORDER BY MIN(l.id)`

	orderProductImagesSQL = `SELECT i.product_id, i.image_ref, i.position
		FROM product_images i
		WHERE i.product_id IN (SELECT product_id FROM order_lines WHERE order_id = $1)
		ORDER BY i.product_id, i.position, i.id`
)

var _ returns.Repository = (*ReturnRepository)(nil)

// ReturnRepository implements returns.Repository backed by PostgreSQL.
type ReturnRepository struct {
	pool *pgxpool.Pool
}

// NewReturnRepository returns a ReturnRepository that uses the given pool.
func NewReturnRepository(pool *pgxpool.Pool) *ReturnRepository {
	return &ReturnRepository{pool: pool}
}

// OrderExists reports whether an order with the given ID exists.
func (r *ReturnRepository) OrderExists(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, orderExistsSQL, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order %d: %w", orderID, err)
	}
	return exists, nil
}

// OrderProductIDs lists the product of every order line in line order.
func (r *ReturnRepository) OrderProductIDs(ctx context.Context, orderID int64) ([]int64, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, orderProductIDsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing products of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Create persists a return request and sets its ID and creation time.
func (r *ReturnRepository) Create(ctx context.Context, req *returns.Request) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createReturnSQL,
		req.OrderID, req.ProductID,
		req.Requester.Name, req.Requester.Email, req.Requester.Phone,
		req.Reason, req.Condition, req.Comment, req.ImageRef, string(req.Status),
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating return for order %d: %w", req.OrderID, err)
	}
	return nil
}

// SetStatus overwrites the status of a return request and reports whether
// it exists.
func (r *ReturnRepository) SetStatus(ctx context.Context, id int64, status returns.Status) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, setReturnStatusSQL, id, string(status))
	if err != nil {
		return false, fmt.Errorf("setting status of return %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns every return request, newest first.
func (r *ReturnRepository) List(ctx context.Context) ([]returns.Request, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listReturnsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing returns: %w", err)
	}
	return pgx.CollectRows(rows, scanReturn)
}

// ListByOrder returns the return requests of one order, newest first.
func (r *ReturnRepository) ListByOrder(ctx context.Context, orderID int64) ([]returns.Request, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrderReturnsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing returns of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanReturn)
}

// OrderProducts returns each distinct product of an order with its ordered
// quantity and all images. Products and images are fetched concurrently on
// separate pool connections.
func (r *ReturnRepository) OrderProducts(ctx context.Context, orderID int64) ([]returns.OrderProduct, error) {
	var (
		products []returns.OrderProduct
		images   map[int64][]product.Image
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, orderProductsSQL, orderID)
		if err != nil {
			return fmt.Errorf("listing products of order %d: %w", orderID, err)
		}
		products, err = pgx.CollectRows(rows, scanOrderProduct)
		return err
	})
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, orderProductImagesSQL, orderID)
		if err != nil {
			return fmt.Errorf("listing images of order %d: %w", orderID, err)
		}
		images = make(map[int64][]product.Image)
		var (
			productID int64
			img       product.Image
		)
		_, err = pgx.ForEachRow(rows, []any{&productID, &img.Ref, &img.Position}, func() error {
			images[productID] = append(images[productID], img)
			return nil
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range products {
		products[i].Images = images[products[i].ID]
	}
	return products, nil
}

func scanReturn(row pgx.CollectableRow) (returns.Request, error) {
	var (
		req    returns.Request
		status string
	)
	err := row.Scan(
		&req.ID, &req.OrderID, &req.ProductID,
		&req.Requester.Name, &req.Requester.Email, &req.Requester.Phone,
		&req.Reason, &req.Condition, &req.Comment, &req.ImageRef, &status, &req.CreatedAt,
	)
	req.Status = returns.Status(status)
	return req, err
}

func scanOrderProduct(row pgx.CollectableRow) (returns.OrderProduct, error) {
	var (
		p      returns.OrderProduct
		status string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock, &status, &p.Quantity,
	)
	p.Status = product.Status(status)
	return p, err
}
