// Package inventory defines the stock ledger used during checkout.
package inventory

import "context"

// Ledger is the only writer of product stock during checkout.
//
// Implementations must perform Reserve as a single conditional write so that
// two concurrent reservations of the last unit cannot both succeed, and must
// join the transaction carried by ctx when one is present.
type Ledger interface {
	// Reserve decrements stock by quantity and recomputes the availability
	// status when at least quantity units are in stock. It reports false when
	// the product is missing or stock is insufficient; err is reserved for
	// storage failures.
	Reserve(ctx context.Context, productID int64, quantity int) (bool, error)

	// Stock returns the current stock of a product, or product.ErrNotFound.
	Stock(ctx context.Context, productID int64) (int, error)
}
