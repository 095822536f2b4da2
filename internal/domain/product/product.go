package product

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Status is the availability label stored alongside the stock count.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusSoldOut   Status = "Sold Out"
)

// StatusForStock derives the availability label from a stock count.
func StatusForStock(stock int) Status {
	if stock > 0 {
		return StatusAvailable
	}
	return StatusSoldOut
}

// Product is a catalog item as seen by the order core. The catalog itself is
// owned elsewhere; the core only reads it and decrements Stock.
type Product struct {
	ID          int64
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	Status      Status
	Images      []Image
}

// Image is a stored image reference attached to a product.
type Image struct {
	Ref      string
	Position int
}
