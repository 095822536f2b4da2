// Package handler exposes the order and return services over JSON HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/returns"
)

// OrderService is the order placement and lifecycle API used by the handler.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	SetStatus(ctx context.Context, orderID int64, label string) (order.Status, error)
	DeleteOrder(ctx context.Context, orderID int64) (bool, error)
	OrderDetails(ctx context.Context, orderID int64) (*order.Details, error)
	ListOrders(ctx context.Context) ([]order.Summary, error)
	ListUserOrders(ctx context.Context, userID int64) ([]order.Summary, error)
}

// ReturnService is the return workflow API used by the handler.
type ReturnService interface {
	Submit(ctx context.Context, req returns.SubmitRequest) (*returns.Request, error)
	UpdateStatus(ctx context.Context, returnID int64, label string) (returns.Status, error)
	List(ctx context.Context) ([]returns.Request, error)
	ListByOrder(ctx context.Context, orderID int64) ([]returns.Request, error)
	ProductsForOrder(ctx context.Context, orderID int64) ([]returns.OrderProduct, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image references in responses.
	// When empty, references are returned as stored.
	ImageBaseURL string
	// RequestTimeout bounds the handling of one API request. Zero disables
	// the bound.
	RequestTimeout time.Duration
}

// Handler serves the /api routes.
type Handler struct {
	orders   OrderService
	returns  ReturnService
	security *Security

	imageBaseURL string
	timeout      time.Duration
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, orders OrderService, returns ReturnService, security *Security) *Handler {
	return &Handler{
		orders:       orders,
		returns:      returns,
		security:     security,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		timeout:      cfg.RequestTimeout,
	}
}

// Mount registers the API routes under /api on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		if h.timeout > 0 {
			r.Use(chimw.Timeout(h.timeout))
		}

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.With(h.security.Require(auth.ScopeOrdersAdmin)).Get("/", h.ListOrders)

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Get("/products", h.ListOrderProducts)
				r.Post("/returns", h.SubmitReturn)
				r.Get("/returns", h.ListOrderReturns)

				r.Group(func(r chi.Router) {
					r.Use(h.security.Require(auth.ScopeOrdersAdmin))
					r.Patch("/status", h.SetOrderStatus)
					r.Delete("/", h.DeleteOrder)
				})
			})
		})

		r.With(h.security.Require(auth.ScopeOrdersAdmin)).Get("/users/{userID}/orders", h.ListUserOrders)

		r.Route("/returns", func(r chi.Router) {
			r.Use(h.security.Require(auth.ScopeReturnsAdmin))
			r.Get("/", h.ListReturns)
			r.Patch("/{returnID}/status", h.SetReturnStatus)
		})
	})
}

// imageURL prefixes a stored image reference with the configured base URL.
// Absolute URLs and empty references are returned unchanged.
func (h *Handler) imageURL(ref string) string {
	if ref == "" || h.imageBaseURL == "" || strings.Contains(ref, "://") {
		return ref
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(ref, "/")
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
