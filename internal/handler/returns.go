package handler

import (
	"net/http"
	"time"

	"github.com/xenking/kart-orders/internal/domain/returns"
)

type returnPayload struct {
	ProductID int64  `json:"productId,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Reason    string `json:"reason"`
	Condition string `json:"condition"`
	Comment   string `json:"comment,omitempty"`
	Image     string `json:"image,omitempty"`
}

type returnResponse struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	ProductID int64     `json:"productId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Reason    string    `json:"reason"`
	Condition string    `json:"condition"`
	Comment   string    `json:"comment,omitempty"`
	Image     string    `json:"image,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderProductResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Status      string   `json:"status"`
	Quantity    int      `json:"quantity"`
	Images      []string `json:"images"`
}

// SubmitReturn handles POST /api/orders/{orderID}/returns.
func (h *Handler) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p returnPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}

	req, err := h.returns.Submit(r.Context(), returns.SubmitRequest{
		OrderID:   orderID,
		ProductID: p.ProductID,
		Requester: returns.Requester{Name: p.Name, Email: p.Email, Phone: p.Phone},
		Reason:    p.Reason,
		Condition: p.Condition,
		Comment:   p.Comment,
		ImageRef:  p.Image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toReturnResponse(*req))
}

// ListOrderReturns handles GET /api/orders/{orderID}/returns.
func (h *Handler) ListOrderReturns(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.returns.ListByOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toReturnResponses(list))
}

// ListReturns handles GET /api/returns.
func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	list, err := h.returns.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toReturnResponses(list))
}

// SetReturnStatus handles PATCH /api/returns/{returnID}/status.
func (h *Handler) SetReturnStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "returnID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p statusPayload
	if err := decode(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}

	status, err := h.returns.UpdateStatus(r.Context(), id, p.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{ID: id, Status: string(status)})
}

// ListOrderProducts handles GET /api/orders/{orderID}/products.
func (h *Handler) ListOrderProducts(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	products, err := h.returns.ProductsForOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderProductResponse, len(products))
	for i, p := range products {
		images := make([]string, len(p.Images))
		for j, img := range p.Images {
			images[j] = h.imageURL(img.Ref)
		}
		out[i] = orderProductResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price.InexactFloat64(),
			Stock:       p.Stock,
			Status:      string(p.Status),
			Quantity:    p.Quantity,
			Images:      images,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) toReturnResponse(req returns.Request) returnResponse {
	return returnResponse{
		ID:        req.ID,
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Name:      req.Requester.Name,
		Email:     req.Requester.Email,
		Phone:     req.Requester.Phone,
		Reason:    req.Reason,
		Condition: req.Condition,
		Comment:   req.Comment,
		Image:     h.imageURL(req.ImageRef),
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
	}
}

func (h *Handler) toReturnResponses(list []returns.Request) []returnResponse {
	out := make([]returnResponse, len(list))
	for i, req := range list {
		out[i] = h.toReturnResponse(req)
	}
	return out
}
