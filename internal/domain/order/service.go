package order

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/inventory"
	"github.com/xenking/kart-orders/internal/domain/product"
)

const instrumentationName = "github.com/xenking/kart-orders/internal/domain/order"

// totalTolerance is the largest accepted difference between the declared
// total and the sum of line subtotals.
var totalTolerance = decimal.RequireFromString("0.01")

// Stored money columns are NUMERIC(12,2) and quantities are INTEGER.
const (
	moneyPlaces = 2
	maxQuantity = math.MaxInt32
)

var maxAmount = decimal.RequireFromString("9999999999.99")

// CartLine is one line of a cart submission.
type CartLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Color     string
	Size      string
	// UserID is honoured only when the request itself carries no user.
	UserID int64
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Lines         []CartLine
	Customer      CustomerSnapshot
	PaymentMethod string
	// DeclaredTotal is the total shown to the customer. Zero means not
	// declared.
	DeclaredTotal decimal.Decimal
	UserID        int64
}

// Service implements order placement and the order lifecycle.
type Service struct {
	tx     Transactor
	ledger inventory.Ledger
	orders Repository

	tracer   trace.Tracer
	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates an order Service with the required dependencies.
func NewService(
	tx Transactor,
	ledger inventory.Ledger,
	orders Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter(instrumentationName)
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	rejected, err := meter.Int64Counter("orders.rejected",
		metric.WithDescription("Order placements that did not commit"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.rejected counter")
	}
	return &Service{
		tx:       tx,
		ledger:   ledger,
		orders:   orders,
		tracer:   tp.Tracer(instrumentationName),
		placed:   placed,
		rejected: rejected,
	}, nil
}

// PlaceOrder validates the cart, then in a single transaction stores the
// customer snapshot, reserves stock for every line in submission order and
// persists the order with its lines. Any failure leaves no trace in storage.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Lines))),
	)
	defer span.End()

	o, err := s.placeOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.placed.Add(ctx, 1)
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Int("lines", len(o.Lines)),
	)
	return o, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	lines := make([]Line, len(req.Lines))
	total := decimal.Zero
	for i, cl := range req.Lines {
		subtotal := cl.UnitPrice.Mul(decimal.NewFromInt(int64(cl.Quantity)))
		lines[i] = Line{
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			UnitPrice: cl.UnitPrice,
			Subtotal:  subtotal,
			Color:     cl.Color,
			Size:      cl.Size,
		}
		total = total.Add(subtotal)
	}
	if !req.DeclaredTotal.IsZero() && req.DeclaredTotal.Sub(total).Abs().GreaterThan(totalTolerance) {
		return nil, &ValidationError{
			Field:  "total",
			Reason: "does not match line items (declared " + req.DeclaredTotal.StringFixed(2) + ", computed " + total.StringFixed(2) + ")",
		}
	}

	customer := req.Customer
	customer.PaymentMethod = req.PaymentMethod
	customer.DeclaredTotal = req.DeclaredTotal

	o := &Order{
		Total:           total,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: customer.ShippingAddress(),
		Status:          StatusPending,
		UserID:          ownerOf(req),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.CreateCustomer(ctx, &customer); err != nil {
			return persistence("customer snapshot", err)
		}
		for _, l := range lines {
			if err := s.reserve(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		o.CustomerID = customer.ID
		if err := s.orders.Create(ctx, o); err != nil {
			return persistence("order", err)
		}
		for i := range lines {
			lines[i].OrderID = o.ID
		}
		if err := s.orders.CreateLines(ctx, o.ID, lines); err != nil {
			return persistence("order lines", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence("place order", err)
	}

	o.Lines = lines
	return o, nil
}

// reserve takes quantity units of a product and classifies a refused
// reservation as a missing product or insufficient stock.
func (s *Service) reserve(ctx context.Context, productID int64, quantity int) error {
	ok, err := s.ledger.Reserve(ctx, productID, quantity)
	if err != nil {
		return persistence("reserve stock", err)
	}
	if ok {
		return nil
	}

	available, err := s.ledger.Stock(ctx, productID)
	switch {
	case errors.Is(err, product.ErrNotFound):
		return &ProductNotFoundError{ProductID: productID}
	case err != nil:
		return persistence("read stock", err)
	}
	return &OutOfStockError{ProductID: productID, Requested: quantity, Available: available}
}

// ownerOf picks the submitting user, falling back to the first line's user
// and finally to the anonymous user 0.
func ownerOf(req PlaceOrderRequest) int64 {
	if req.UserID != 0 {
		return req.UserID
	}
	if len(req.Lines) > 0 {
		return req.Lines[0].UserID
	}
	return 0
}

func validate(req PlaceOrderRequest) error {
	if len(req.Lines) == 0 {
		return &ValidationError{Field: "lines", Reason: "must not be empty"}
	}

	c := req.Customer
	required := []struct {
		field string
		value string
	}{
		{"name", c.Name},
		{"address", c.Address},
		{"city", c.City},
		{"postal_code", c.PostalCode},
		{"phone", c.Phone},
		{"email", c.Email},
		{"payment_method", req.PaymentMethod},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}
	if !strings.Contains(c.Email, "@") {
		return &ValidationError{Field: "email", Reason: "is malformed"}
	}
	if err := checkAmount("total", req.DeclaredTotal); err != nil {
		return err
	}

	total := decimal.Zero
	for _, l := range req.Lines {
		if l.ProductID <= 0 {
			return &ValidationError{Field: "product_id", Reason: "must be positive"}
		}
		if l.Quantity <= 0 {
			return &ValidationError{Field: "quantity", Reason: "must be greater than 0"}
		}
		if l.Quantity > maxQuantity {
			return &ValidationError{Field: "quantity", Reason: "must not exceed " + strconv.Itoa(maxQuantity)}
		}
		if err := checkAmount("unit_price", l.UnitPrice); err != nil {
			return err
		}
		subtotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if subtotal.GreaterThan(maxAmount) {
			return &ValidationError{Field: "subtotal", Reason: "exceeds " + maxAmount.StringFixed(moneyPlaces)}
		}
		total = total.Add(subtotal)
	}
	if total.GreaterThan(maxAmount) {
		return &ValidationError{Field: "total", Reason: "exceeds " + maxAmount.StringFixed(moneyPlaces)}
	}
	return nil
}

// checkAmount accepts non-negative money values with at most two decimal
// places that fit the stored column.
func checkAmount(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return &ValidationError{Field: field, Reason: "must not be negative"}
	case !v.Equal(v.Round(moneyPlaces)):
		return &ValidationError{Field: field, Reason: "must have at most 2 decimal places"}
	case v.GreaterThan(maxAmount):
		return &ValidationError{Field: field, Reason: "exceeds " + maxAmount.StringFixed(moneyPlaces)}
	}
	return nil
}

func rejectReason(err error) string {
	var (
		pnf *ProductNotFoundError
		oos *OutOfStockError
	)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.As(err, &pnf):
		return "product_not_found"
	case errors.As(err, &oos):
		return "out_of_stock"
	default:
		return "persistence"
	}
}
