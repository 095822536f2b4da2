package returns

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/order"
)

// SubmitRequest holds the input for a return submission.
type SubmitRequest struct {
	OrderID int64
	// ProductID selects the order line being returned. Zero falls back to
	// the product of the order's first line.
	ProductID int64
	Requester Requester
	Reason    string
	Condition string
	Comment   string
	ImageRef  string
	// Status overrides the initial status; empty means Pending.
	Status Status
}

// Service implements the return workflow.
type Service struct {
	tx      order.Transactor
	returns Repository
}

// NewService creates a returns Service.
func NewService(tx order.Transactor, returns Repository) *Service {
	return &Service{tx: tx, returns: returns}
}

// Submit records a return request against an existing order.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Request, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	r := &Request{
		OrderID:   req.OrderID,
		Requester: req.Requester,
		Reason:    req.Reason,
		Condition: req.Condition,
		Comment:   req.Comment,
		ImageRef:  req.ImageRef,
		Status:    req.Status,
	}
	if r.Status == "" {
		r.Status = StatusPending
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.returns.OrderExists(ctx, req.OrderID)
		if err != nil {
			return persistence("lookup order", err)
		}
		if !exists {
			return order.ErrNotFound
		}

		ids, err := s.returns.OrderProductIDs(ctx, req.OrderID)
		if err != nil {
			return persistence("lookup order lines", err)
		}
		productID, err := pickProduct(req.OrderID, req.ProductID, ids)
		if err != nil {
			return err
		}
		r.ProductID = productID

		if err := s.returns.Create(ctx, r); err != nil {
			return persistence("return request", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence("submit return", err)
	}

	zctx.From(ctx).Info("Return submitted",
		zap.Int64("return_id", r.ID),
		zap.Int64("order_id", r.OrderID),
		zap.Int64("product_id", r.ProductID),
	)
	return r, nil
}

// pickProduct resolves the product a return targets from the order's line
// products.
func pickProduct(orderID, requested int64, lineProducts []int64) (int64, error) {
	if len(lineProducts) == 0 {
		return 0, ErrOrderHasNoItems
	}
	if requested == 0 {
		return lineProducts[0], nil
	}
	for _, id := range lineProducts {
		if id == requested {
			return id, nil
		}
	}
	return 0, &ProductNotOnOrderError{OrderID: orderID, ProductID: requested}
}

// UpdateStatus sets a free-form status on a return request. Labels outside
// the predefined set are stored as given.
func (s *Service) UpdateStatus(ctx context.Context, returnID int64, label string) (Status, error) {
	status := Status(strings.TrimSpace(label))
	if status == "" {
		return "", &order.ValidationError{Field: "status", Reason: "is required"}
	}

	lg := zctx.From(ctx)
	if !status.Known() {
		lg.Warn("Unrecognized return status", zap.Int64("return_id", returnID), zap.String("status", string(status)))
	}

	found, err := s.returns.SetStatus(ctx, returnID, status)
	if err != nil {
		return "", persistence("return status", err)
	}
	if !found {
		return "", ErrNotFound
	}

	lg.Info("Return status changed", zap.Int64("return_id", returnID), zap.String("status", string(status)))
	return status, nil
}

// List returns every return request, newest first.
func (s *Service) List(ctx context.Context) ([]Request, error) {
	list, err := s.returns.List(ctx)
	if err != nil {
		return nil, persistence("list returns", err)
	}
	return list, nil
}

// ListByOrder returns the return requests of one order, newest first.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]Request, error) {
	list, err := s.returns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, persistence("list order returns", err)
	}
	return list, nil
}

// ProductsForOrder lists each distinct product on an order with its current
// price, stock, description and images, for choosing what to return.
func (s *Service) ProductsForOrder(ctx context.Context, orderID int64) ([]OrderProduct, error) {
	exists, err := s.returns.OrderExists(ctx, orderID)
	if err != nil {
		return nil, persistence("lookup order", err)
	}
	if !exists {
		return nil, order.ErrNotFound
	}

	products, err := s.returns.OrderProducts(ctx, orderID)
	if err != nil {
		return nil, persistence("order products", err)
	}
	return products, nil
}

func validate(req SubmitRequest) error {
	if req.OrderID <= 0 {
		return &order.ValidationError{Field: "order_id", Reason: "must be positive"}
	}
	if req.ProductID < 0 {
		return &order.ValidationError{Field: "product_id", Reason: "must not be negative"}
	}
	required := []struct {
		field string
		value string
	}{
		{"name", req.Requester.Name},
		{"email", req.Requester.Email},
		{"reason", req.Reason},
		{"condition", req.Condition},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &order.ValidationError{Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

func persistence(op string, err error) error {
	var (
		pe  *order.PersistenceError
		ve  *order.ValidationError
		pno *ProductNotOnOrderError
	)
	switch {
	case errors.As(err, &pe),
		errors.As(err, &ve),
		errors.As(err, &pno),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrOrderHasNoItems):
		return err
	}
	return &order.PersistenceError{Op: op, Err: err}
}
