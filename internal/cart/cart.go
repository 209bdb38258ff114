// Package cart models the transient list of lines an operator builds before
// checkout. Prices carried here are for display; the store snapshots the
// catalog price when the sale commits.
package cart

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

type Cart struct {
	lines []domain.CartLine
}

func (c *Cart) index(productID string) int {
	for i, line := range c.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges qty into the product's line, capped at the product's stock.
// It fails when nothing more can be added.
func (c *Cart) Add(product domain.Product, qty int) (domain.CartLine, error) {
	if qty <= 0 {
		return domain.CartLine{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	idx := c.index(product.ID)
	current := 0
	if idx >= 0 {
		current = c.lines[idx].Quantity
	}
	next := min(current+qty, product.Stock)
	if next <= current {
		return domain.CartLine{}, fmt.Errorf("product %s: %w", product.ID, store.ErrInsufficientStock)
	}

	line := domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  next,
		Price:     product.Price,
		LineTotal: product.Price.Mul(decimal.NewFromInt(int64(next))),
	}
	if idx >= 0 {
		c.lines[idx] = line
	} else {
		c.lines = append(c.lines, line)
	}
	return line, nil
}

// SetQuantity replaces a line's quantity. Zero removes the line.
func (c *Cart) SetQuantity(productID string, qty int, stock int) error {
	idx := c.index(productID)
	if idx < 0 {
		return fmt.Errorf("cart line %s: %w", productID, store.ErrNotFound)
	}
	switch {
	case qty < 0:
		return fmt.Errorf("quantity must not be negative: %w", store.ErrInvalidInput)
	case qty == 0:
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
		return nil
	case qty > stock:
		return fmt.Errorf("product %s: %w", productID, store.ErrInsufficientStock)
	}
	c.lines[idx].Quantity = qty
	c.lines[idx].LineTotal = c.lines[idx].Price.Mul(decimal.NewFromInt(int64(qty)))
	return nil
}

func (c *Cart) Remove(productID string) {
	if idx := c.index(productID); idx >= 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	}
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Items returns the lines in sale-request form.
func (c *Cart) Items() []domain.SaleLine {
	out := make([]domain.SaleLine, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, domain.SaleLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.LineTotal)
	}
	return total
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Registry keeps one cart per operator.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*Cart)}
}

// Update runs fn against owner's cart while holding the registry lock.
func (r *Registry) Update(owner string, fn func(*Cart) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[owner]
	if !ok {
		c = &Cart{}
		r.carts[owner] = c
	}
	return fn(c)
}

// Get returns a copy of owner's cart.
func (r *Registry) Get(owner string) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[owner]
	if !ok {
		return Cart{}
	}
	return Cart{lines: c.Lines()}
}

func (r *Registry) Clear(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, owner)
}
