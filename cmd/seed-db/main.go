// Command seed-db loads the product catalog with its stock and images and
// registers an administrative API key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/product"
	"github.com/xenking/kart-orders/internal/storage/postgres"
)

type productJSON struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
}

func (p productJSON) product() product.Product {
	images := make([]product.Image, len(p.Images))
	for i, ref := range p.Images {
		images[i] = product.Image{Ref: ref, Position: i}
	}
	return product.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		Images:      images,
	}
}

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
	workers      int
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "products JSON file, optionally .gz compressed")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or KART_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_API_KEY_PEPPER env)")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent product upserts")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	opts.fromEnv()
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or KART_SEED_API_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func (o *options) fromEnv() {
	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.apiKey == "" {
		o.apiKey = os.Getenv("KART_SEED_API_KEY")
	}
	if o.apiKeyPepper == "" {
		o.apiKeyPepper = os.Getenv("KART_API_KEY_PEPPER")
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Running migrations")
	if err := postgres.RunMigrations(opts.databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	products, err := readProducts(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}
	lg.Info("Upserting products", zap.Int("count", len(products)), zap.String("path", opts.productsFile))

	catalog := postgres.NewCatalogRepository(pool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))
	for _, p := range products {
		g.Go(func() error {
			if err := catalog.Upsert(gctx, p.product()); err != nil {
				return errors.Wrapf(err, "upsert product %d", p.ID)
			}
			lg.Debug("Upserted product", zap.Int64("id", p.ID), zap.String("name", p.Name), zap.Int("stock", p.Stock))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := catalog.SyncSequence(ctx); err != nil {
		return err
	}

	apikeys := postgres.NewAPIKeyRepository(pool)
	if err := apikeys.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(opts.apiKeyPepper), opts.apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeOrdersAdmin, auth.ScopeReturnsAdmin},
	}); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	lg.Info("Upserted API key", zap.String("id", "default"))

	return nil
}

// readProducts decodes a JSON array of products from path, decompressing
// it when the name ends in .gz.
func readProducts(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return decodeProducts(r)
}

func decodeProducts(r io.Reader) ([]productJSON, error) {
	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	for _, p := range products {
		switch {
		case p.ID <= 0:
			return nil, errors.Errorf("product %q: id must be positive", p.Name)
		case p.Stock < 0:
			return nil, errors.Errorf("product %d: stock must not be negative", p.ID)
		case p.Price.IsNegative():
			return nil, errors.Errorf("product %d: price must not be negative", p.ID)
		}
	}
	return products, nil
}
