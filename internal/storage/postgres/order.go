package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-orders/internal/domain/order"
)

const (
	createCustomerSQL = `INSERT INTO customers
		(name, address, city, postal_code, phone, email, payment_method, declared_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	createOrderSQL = `INSERT INTO orders
		(total, payment_method, shipping_address, status, user_id, customer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	createOrderLineSQL = `INSERT INTO order_lines
		(order_id, product_id, quantity, unit_price, subtotal, color, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	setOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

	deleteOrderLinesSQL = `DELETE FROM order_lines WHERE order_id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	getOrderDetailsSQL = `SELECT o.id, o.total, o.created_at, o.payment_method, o.shipping_address,
			o.status, o.user_id, o.customer_id, c.name, c.email
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`

	getOrderDetailLinesSQL = `SELECT l.id, l.order_id, l.product_id, l.quantity, l.unit_price, l.subtotal,
			l.color, l.size, p.name, p.price,
			COALESCE((SELECT i.image_ref FROM product_images i
				WHERE i.product_id = p.id ORDER BY i.position, i.id LIMIT 1), '')
		FROM order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = $1
		ORDER BY l.id`

	orderSummaryColumns = `o.id, o.total, o.created_at, o.payment_method, o.shipping_address,
			o.status, o.user_id, o.customer_id, c.name, c.email, c.phone`

	listOrdersSQL = `SELECT ` + orderSummaryColumns + `
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		ORDER BY o.created_at DESC, o.id DESC`

	listUserOrdersSQL = `SELECT ` + orderSummaryColumns + `
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateCustomer persists a customer snapshot and sets its ID.
func (r *OrderRepository) CreateCustomer(ctx context.Context, c *order.CustomerSnapshot) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createCustomerSQL,
		c.Name, c.Address, c.City, c.PostalCode, c.Phone, c.Email, c.PaymentMethod, c.DeclaredTotal,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("creating customer: %w", err)
	}
	return nil
}

// Create persists an order header and sets its ID and creation time.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createOrderSQL,
		o.Total, o.PaymentMethod, o.ShippingAddress, string(o.Status), o.UserID, o.CustomerID,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// CreateLines persists all lines of an order in one batch round trip and
// sets their IDs.
func (r *OrderRepository) CreateLines(ctx context.Context, orderID int64, lines []order.Line) error {
	if len(lines) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range lines {
		l := &lines[i]
		batch.Queue(createOrderLineSQL,
			orderID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal, l.Color, l.Size,
		).QueryRow(func(row pgx.Row) error {
			l.OrderID = orderID
			return row.Scan(&l.ID)
		})
	}

	if err := conn(ctx, r.pool).SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating lines of order %d: %w", orderID, err)
	}
	return nil
}

// SetStatus overwrites the status of an order and reports whether it exists.
func (r *OrderRepository) SetStatus(ctx context.Context, orderID int64, status order.Status) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, setOrderStatusSQL, orderID, string(status))
	if err != nil {
		return false, fmt.Errorf("setting status of order %d: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteLines removes every line of an order.
func (r *OrderRepository) DeleteLines(ctx context.Context, orderID int64) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, deleteOrderLinesSQL, orderID); err != nil {
		return fmt.Errorf("deleting lines of order %d: %w", orderID, err)
	}
	return nil
}

// Delete removes an order and reports whether it existed. Return requests
// cascade with it.
func (r *OrderRepository) Delete(ctx context.Context, orderID int64) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteOrderSQL, orderID)
	if err != nil {
		return false, fmt.Errorf("deleting order %d: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Details returns an order with its customer identity and lines joined
// with the current product name, price and first image.
func (r *OrderRepository) Details(ctx context.Context, orderID int64) (*order.Details, error) {
	q := conn(ctx, r.pool)

	var (
		d      order.Details
		status string
	)
	err := q.QueryRow(ctx, getOrderDetailsSQL, orderID).Scan(
		&d.ID, &d.Total, &d.CreatedAt, &d.PaymentMethod, &d.ShippingAddress,
		&status, &d.UserID, &d.CustomerID, &d.CustomerName, &d.CustomerEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", orderID, err)
	}
	d.Status = order.Status(status)

	rows, err := q.Query(ctx, getOrderDetailLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %d: %w", orderID, err)
	}
	d.Lines, err = pgx.CollectRows(rows, scanDetailLine)
	if err != nil {
		return nil, fmt.Errorf("scanning lines of order %d: %w", orderID, err)
	}

	d.Order.Lines = make([]order.Line, len(d.Lines))
	for i, l := range d.Lines {
		d.Order.Lines[i] = l.Line
	}
	return &d, nil
}

// List returns every order with its customer snapshot, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Summary, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanSummary)
}

// ListByUser returns the orders of one user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Summary, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listUserOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanSummary)
}

func scanSummary(row pgx.CollectableRow) (order.Summary, error) {
	var (
		s      order.Summary
		status string
	)
	err := row.Scan(
		&s.ID, &s.Total, &s.CreatedAt, &s.PaymentMethod, &s.ShippingAddress,
		&status, &s.UserID, &s.CustomerID, &s.CustomerName, &s.CustomerEmail, &s.CustomerPhone,
	)
	s.Status = order.Status(status)
	return s, err
}

func scanDetailLine(row pgx.CollectableRow) (order.DetailLine, error) {
	var l order.DetailLine
	err := row.Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal,
		&l.Color, &l.Size, &l.ProductName, &l.CurrentPrice, &l.ImageRef,
	)
	return l, err
}
