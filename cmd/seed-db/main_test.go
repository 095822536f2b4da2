package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProducts = `[
	{"id": 1, "name": "Waffle with Berries", "category": "Waffle", "price": 6.5, "stock": 12,
	 "images": ["waffle/thumb.jpg", "waffle/desktop.jpg"]},
	{"id": 2, "name": "Macaron Mix", "category": "Macaron", "price": "8.00", "stock": 0}
]`

func TestReadProducts(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(plain, []byte(sampleProducts), 0o600))

	compressed := filepath.Join(dir, "products.json.gz")
	f, err := os.Create(compressed)
	require.NoError(t, err)
	zw := pgzip.NewWriter(f)
	_, err = zw.Write([]byte(sampleProducts))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{plain, compressed} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			products, err := readProducts(path)
			require.NoError(t, err)
			require.Len(t, products, 2)

			p := products[0].product()
			assert.Equal(t, int64(1), p.ID)
			assert.Equal(t, 12, p.Stock)
			assert.Equal(t, "6.5", p.Price.String())
			require.Len(t, p.Images, 2)
			assert.Equal(t, 1, p.Images[1].Position)

			assert.Equal(t, "8", products[1].Price.String())
			assert.Empty(t, products[1].product().Images)
		})
	}
}

func TestDecodeProducts_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name, body, want string
	}{
		{"negative stock", `[{"id": 1, "price": 1, "stock": -1}]`, "stock"},
		{"missing id", `[{"name": "x", "price": 1}]`, "id must be positive"},
		{"negative price", `[{"id": 3, "price": -2}]`, "price"},
		{"not an array", `{"id": 1}`, "decode"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeProducts(strings.NewReader(tc.body))
			require.ErrorContains(t, err, tc.want)
		})
	}
}
