package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/order"
)

type placeOrderItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	UserID    int64           `json:"userId,omitempty"`
}

type customerPayload struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

type placeOrderPayload struct {
	Items         []placeOrderItem `json:"items"`
	Customer      customerPayload  `json:"customer"`
	PaymentMethod string           `json:"paymentMethod"`
	Total         decimal.Decimal  `json:"total"`
	UserID        int64            `json:"userId,omitempty"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type lineResponse struct {
	ID           int64    `json:"id"`
	ProductID    int64    `json:"productId"`
	Quantity     int      `json:"quantity"`
	Price        float64  `json:"price"`
	Subtotal     float64  `json:"subtotal"`
	Color        string   `json:"color,omitempty"`
	Size         string   `json:"size,omitempty"`
	ProductName  string   `json:"productName,omitempty"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
	Image        string   `json:"image,omitempty"`
}

type customerResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type orderResponse struct {
	ID              int64             `json:"id"`
	Total           float64           `json:"total"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	PaymentMethod   string            `json:"paymentMethod"`
	ShippingAddress string            `json:"shippingAddress"`
	UserID          int64             `json:"userId"`
	Customer        *customerResponse `json:"customer,omitempty"`
	Items           []lineResponse    `json:"items,omitempty"`
}

type statusResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var p placeOrderPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}

	lines := make([]order.CartLine, len(p.Items))
	for i, it := range p.Items {
		lines[i] = order.CartLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Color:     it.Color,
			Size:      it.Size,
			UserID:    it.UserID,
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Lines: lines,
		Customer: order.CustomerSnapshot{
			Name:       p.Customer.Name,
			Address:    p.Customer.Address,
			City:       p.Customer.City,
			PostalCode: p.Customer.PostalCode,
			Phone:      p.Customer.Phone,
			Email:      p.Customer.Email,
		},
		PaymentMethod: p.PaymentMethod,
		DeclaredTotal: p.Total,
		UserID:        p.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := toOrderResponse(*o)
	resp.Items = make([]lineResponse, len(o.Lines))
	for i, l := range o.Lines {
		resp.Items[i] = toLineResponse(l)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetOrder handles GET /api/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.orders.OrderDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := toOrderResponse(d.Order)
	resp.Customer = &customerResponse{Name: d.CustomerName, Email: d.CustomerEmail}
	resp.Items = make([]lineResponse, len(d.Lines))
	for i, l := range d.Lines {
		lr := toLineResponse(l.Line)
		current := l.CurrentPrice.InexactFloat64()
		lr.ProductName = l.ProductName
		lr.CurrentPrice = &current
		lr.Image = h.imageURL(l.ImageRef)
		resp.Items[i] = lr
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListOrders handles GET /api/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListOrders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(list))
}

// ListUserOrders handles GET /api/users/{userID}/orders. The rows carry the
// customer snapshot, so the route sits behind the same scope as ListOrders.
func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.orders.ListUserOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(list))
}

// SetOrderStatus handles PATCH /api/orders/{orderID}/status.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p statusPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}

	status, err := h.orders.SetStatus(r.Context(), id, p.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	audit(r, "Order status changed", zap.Int64("order_id", id), zap.String("status", string(status)))
	writeJSON(w, http.StatusOK, statusResponse{ID: id, Status: string(status)})
}

// DeleteOrder handles DELETE /api/orders/{orderID}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	found, err := h.orders.DeleteOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, order.ErrNotFound)
		return
	}
	audit(r, "Order deleted", zap.Int64("order_id", id))
	noContent(w)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &order.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

func toOrderResponse(o order.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		Total:           o.Total.InexactFloat64(),
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		UserID:          o.UserID,
	}
}

func toLineResponse(l order.Line) lineResponse {
	return lineResponse{
		ID:        l.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Price:     l.UnitPrice.InexactFloat64(),
		Subtotal:  l.Subtotal.InexactFloat64(),
		Color:     l.Color,
		Size:      l.Size,
	}
}

func toSummaries(list []order.Summary) []orderResponse {
	out := make([]orderResponse, len(list))
	for i, s := range list {
		out[i] = toOrderResponse(s.Order)
		out[i].Customer = &customerResponse{
			Name:  s.CustomerName,
			Email: s.CustomerEmail,
			Phone: s.CustomerPhone,
		}
	}
	return out
}
