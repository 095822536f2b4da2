package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/returns"
	"github.com/xenking/kart-orders/pkg/httpmiddleware"
)

// statusOf maps a domain error to its HTTP status.
func statusOf(err error) int {
	var (
		pnf *order.ProductNotFoundError
		oos *order.OutOfStockError
		pno *returns.ProductNotOnOrderError
	)
	switch {
	case errors.Is(err, order.ErrInvalidRequest),
		errors.Is(err, order.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, returns.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &pnf),
		errors.As(err, &oos),
		errors.As(err, &pno),
		errors.Is(err, returns.ErrOrderHasNoItems):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes the JSON error body. Internal
// errors are logged and their message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal error"
	}
	httpmiddleware.WriteError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

// decode reads a single JSON value from the request body into v. Anything
// but whitespace after that value is rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &order.ValidationError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &order.ValidationError{Field: "body", Reason: "must contain a single JSON value"}
	}
	return nil
}
