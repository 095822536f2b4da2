package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// SetStatus moves an order to the status named by label. Any recognized
// status may follow any other; unknown labels fail with ErrInvalidStatus and
// leave the stored status untouched.
func (s *Service) SetStatus(ctx context.Context, orderID int64, label string) (Status, error) {
	status, err := ParseStatus(label)
	if err != nil {
		return "", err
	}

	found, err := s.orders.SetStatus(ctx, orderID, status)
	if err != nil {
		return "", persistence("order status", err)
	}
	if !found {
		return "", ErrNotFound
	}

	zctx.From(ctx).Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("status", string(status)),
	)
	return status, nil
}

// DeleteOrder removes an order and its lines in one transaction and reports
// whether the order existed.
//
// Stock reserved by the order is not credited back.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) (bool, error) {
	var found bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.DeleteLines(ctx, orderID); err != nil {
			return persistence("delete order lines", err)
		}
		var err error
		found, err = s.orders.Delete(ctx, orderID)
		if err != nil {
			return persistence("delete order", err)
		}
		return nil
	})
	if err != nil {
		return false, persistence("delete order", err)
	}

	if found {
		zctx.From(ctx).Info("Order deleted", zap.Int64("order_id", orderID))
	}
	return found, nil
}

// OrderDetails returns an order with its customer identity and lines joined
// with current catalog data.
func (s *Service) OrderDetails(ctx context.Context, orderID int64) (*Details, error) {
	d, err := s.orders.Details(ctx, orderID)
	if err != nil {
		return nil, persistence("order details", err)
	}
	return d, nil
}

// ListOrders returns every order with its customer snapshot, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]Summary, error) {
	list, err := s.orders.List(ctx)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	return list, nil
}

// ListUserOrders returns the orders placed by one user, newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID int64) ([]Summary, error) {
	list, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistence("list user orders", err)
	}
	return list, nil
}
