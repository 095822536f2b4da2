package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForStock(t *testing.T) {
	assert.Equal(t, StatusSoldOut, StatusForStock(-1))
	assert.Equal(t, StatusSoldOut, StatusForStock(0))
	assert.Equal(t, StatusAvailable, StatusForStock(1))
	assert.Equal(t, StatusAvailable, StatusForStock(500))
}
