package order

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-orders/internal/domain/product"
)

// memStore is an in-memory Transactor, inventory.Ledger and Repository.
// Transactions are serialized and roll back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex

	mu        sync.Mutex
	products  map[int64]product.Product
	customers map[int64]CustomerSnapshot
	orders    map[int64]Order
	lines     map[int64][]Line
	nextID    int64

	linesErr error
}

func newMemStore(products ...product.Product) *memStore {
	m := &memStore{
		products:  make(map[int64]product.Product),
		customers: make(map[int64]CustomerSnapshot),
		orders:    make(map[int64]Order),
		lines:     make(map[int64][]Line),
	}
	for _, p := range products {
		p.Status = product.StatusForStock(p.Stock)
		m.products[p.ID] = p
	}
	return m
}

type memSnapshot struct {
	products  map[int64]product.Product
	customers map[int64]CustomerSnapshot
	orders    map[int64]Order
	lines     map[int64][]Line
	nextID    int64
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		products:  maps.Clone(m.products),
		customers: maps.Clone(m.customers),
		orders:    maps.Clone(m.orders),
		lines:     maps.Clone(m.lines),
		nextID:    m.nextID,
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.products = snap.products
		m.customers = snap.customers
		m.orders = snap.orders
		m.lines = snap.lines
		m.nextID = snap.nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) Reserve(_ context.Context, productID int64, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.Status = product.StatusForStock(p.Stock)
	m.products[productID] = p
	return true, nil
}

func (m *memStore) Stock(_ context.Context, productID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return 0, product.ErrNotFound
	}
	return p.Stock, nil
}

func (m *memStore) CreateCustomer(_ context.Context, c *CustomerSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	c.ID = m.nextID
	m.customers[c.ID] = *c
	return nil
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	m.orders[o.ID] = *o
	return nil
}

func (m *memStore) CreateLines(_ context.Context, orderID int64, lines []Line) error {
	if m.linesErr != nil {
		return m.linesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines[orderID] = append(slices.Clone(m.lines[orderID]), lines...)
	return nil
}

func (m *memStore) SetStatus(_ context.Context, orderID int64, status Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	o.Status = status
	m.orders[orderID] = o
	return true, nil
}

func (m *memStore) DeleteLines(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.lines, orderID)
	return nil
}

func (m *memStore) Delete(_ context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[orderID]; !ok {
		return false, nil
	}
	delete(m.orders, orderID)
	return true, nil
}

func (m *memStore) Details(_ context.Context, orderID int64) (*Details, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	c := m.customers[o.CustomerID]
	d := &Details{Order: o, CustomerName: c.Name, CustomerEmail: c.Email}
	for _, l := range m.lines[orderID] {
		p := m.products[l.ProductID]
		d.Lines = append(d.Lines, DetailLine{Line: l, ProductName: p.Name, CurrentPrice: p.Price})
	}
	return d, nil
}

func (m *memStore) List(_ context.Context) ([]Summary, error) {
	return m.summaries(func(Order) bool { return true }), nil
}

func (m *memStore) ListByUser(_ context.Context, userID int64) ([]Summary, error) {
	return m.summaries(func(o Order) bool { return o.UserID == userID }), nil
}

func (m *memStore) summaries(keep func(Order) bool) []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Summary
	for _, o := range m.orders {
		if !keep(o) {
			continue
		}
		c := m.customers[o.CustomerID]
		out = append(out, Summary{Order: o, CustomerName: c.Name, CustomerEmail: c.Email, CustomerPhone: c.Phone})
	}
	slices.SortFunc(out, func(a, b Summary) int { return int(b.ID - a.ID) })
	return out
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) counts() (customers, orders, lines int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ls := range m.lines {
		lines += len(ls)
	}
	return len(m.customers), len(m.orders), lines
}

func newTestProduct(id int64, name string, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}
