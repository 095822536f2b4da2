// Package returns implements return requests against placed orders.
package returns

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-orders/internal/domain/product"
)

// Status is the state of a return request. It is independent of the order
// status: a Delivered order may carry a Pending return.
//
// Updates accept any non-empty label; the constants below are the labels
// the storefront knows about.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
)

var knownStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCompleted}

// Known reports whether s is one of the predefined labels.
func (s Status) Known() bool {
	return slices.Contains(knownStatuses, s)
}

// Sentinel errors for return operations.
var (
	ErrNotFound        = errors.New("return request not found")
	ErrOrderHasNoItems = errors.New("order has no items")
)

// ProductNotOnOrderError indicates the targeted product is not one of the
// order's lines.
type ProductNotOnOrderError struct {
	OrderID   int64
	ProductID int64
}

func (e *ProductNotOnOrderError) Error() string {
	return fmt.Sprintf("product %d is not part of order %d", e.ProductID, e.OrderID)
}

// Requester identifies the person asking for the return.
type Requester struct {
	Name  string
	Email string
	Phone string
}

// Request is a stored return request.
type Request struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Requester Requester
	Reason    string
	Condition string
	Comment   string
	ImageRef  string
	Status    Status
	CreatedAt time.Time
}

// OrderProduct is a product referenced by an order, with its current catalog
// data and the quantity that was ordered.
type OrderProduct struct {
	product.Product
	Quantity int
}

// Repository defines persistence operations for return requests.
type Repository interface {
	OrderExists(ctx context.Context, orderID int64) (bool, error)
	// OrderProductIDs lists the product of every order line in line order.
	OrderProductIDs(ctx context.Context, orderID int64) ([]int64, error)
	Create(ctx context.Context, r *Request) error
	SetStatus(ctx context.Context, id int64, status Status) (bool, error)
	List(ctx context.Context) ([]Request, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Request, error)
	OrderProducts(ctx context.Context, orderID int64) ([]OrderProduct, error)
}
