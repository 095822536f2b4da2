package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusDelivered  Status = "Delivered"
	StatusReturned   Status = "Returned"
)

// Statuses lists every recognized order status.
var Statuses = []Status{StatusPending, StatusProcessing, StatusDelivered, StatusReturned}

// ParseStatus converts a label into a Status. Unknown labels yield an error
// wrapping ErrInvalidStatus.
func ParseStatus(label string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == label {
			return s, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidStatus, "%q", label)
}

// CustomerSnapshot is the contact and shipping data frozen at checkout.
type CustomerSnapshot struct {
	ID            int64
	Name          string
	Address       string
	City          string
	PostalCode    string
	Phone         string
	Email         string
	PaymentMethod string
	DeclaredTotal decimal.Decimal
}

// ShippingAddress composes the denormalized address stored on the order.
func (c CustomerSnapshot) ShippingAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Address, c.City, c.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Order is the aggregate root. Status is the only field mutated after
// creation.
type Order struct {
	ID              int64
	Total           decimal.Decimal
	CreatedAt       time.Time
	PaymentMethod   string
	ShippingAddress string
	Status          Status
	UserID          int64
	CustomerID      int64
	Lines           []Line
}

// Line is one product entry of an order. UnitPrice is frozen at placement.
type Line struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Color     string
	Size      string
}

// Summary is a row of the administrative order listing.
type Summary struct {
	Order
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Details is an order with its customer identity and lines joined with the
// current catalog data.
type Details struct {
	Order
	CustomerName  string
	CustomerEmail string
	Lines         []DetailLine
}

// DetailLine is an order line joined with the product's current name, price
// and primary image.
type DetailLine struct {
	Line
	ProductName  string
	CurrentPrice decimal.Decimal
	ImageRef     string
}

// Repository defines persistence operations for orders. Methods join the
// transaction carried by ctx when there is one.
type Repository interface {
	CreateCustomer(ctx context.Context, c *CustomerSnapshot) error
	Create(ctx context.Context, o *Order) error
	CreateLines(ctx context.Context, orderID int64, lines []Line) error
	SetStatus(ctx context.Context, orderID int64, status Status) (bool, error)
	DeleteLines(ctx context.Context, orderID int64) error
	Delete(ctx context.Context, orderID int64) (bool, error)
	Details(ctx context.Context, orderID int64) (*Details, error)
	List(ctx context.Context) ([]Summary, error)
	ListByUser(ctx context.Context, userID int64) ([]Summary, error)
}

// Transactor runs fn inside one database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
