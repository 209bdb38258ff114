package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

func product(id string, price int64, stock int) domain.Product {
	return domain.Product{ID: id, Name: "Producto " + id, Price: decimal.NewFromInt(price), Stock: stock}
}

func TestAddMergesLines(t *testing.T) {
	var c Cart
	_, err := c.Add(product("A", 1000, 10), 2)
	require.NoError(t, err)
	line, err := c.Add(product("A", 1000, 10), 3)
	require.NoError(t, err)

	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Subtotal().Equal(decimal.NewFromInt(5000)))
}

func TestAddCapsAtStock(t *testing.T) {
	var c Cart
	line, err := c.Add(product("A", 100, 3), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)

	_, err = c.Add(product("A", 100, 3), 1)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 3, c.Lines()[0].Quantity)
}

func TestAddRejectsOutOfStockAndBadQuantity(t *testing.T) {
	var c Cart
	_, err := c.Add(product("A", 100, 0), 1)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = c.Add(product("A", 100, 5), 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Zero(t, c.Len())
}

func TestSetQuantity(t *testing.T) {
	var c Cart
	_, err := c.Add(product("A", 250, 10), 1)
	require.NoError(t, err)
	_, err = c.Add(product("B", 100, 10), 1)
	require.NoError(t, err)

	require.NoError(t, c.SetQuantity("A", 4, 10))
	assert.True(t, c.Subtotal().Equal(decimal.NewFromInt(1100)))

	assert.ErrorIs(t, c.SetQuantity("A", 11, 10), store.ErrInsufficientStock)
	assert.ErrorIs(t, c.SetQuantity("A", -1, 10), store.ErrInvalidInput)
	assert.ErrorIs(t, c.SetQuantity("Z", 1, 10), store.ErrNotFound)

	require.NoError(t, c.SetQuantity("A", 0, 10))
	require.Len(t, c.Lines(), 1)
	assert.Equal(t, "B", c.Lines()[0].ProductID)
}

func TestItemsAndRemove(t *testing.T) {
	var c Cart
	_, _ = c.Add(product("A", 10, 5), 2)
	_, _ = c.Add(product("B", 20, 5), 1)

	c.Remove("A")
	c.Remove("missing")

	assert.Equal(t, []domain.SaleLine{{ProductID: "B", Quantity: 1}}, c.Items())

	c.Clear()
	assert.Empty(t, c.Items())
}

func TestRegistryIsolatesOwners(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Update("ana", func(c *Cart) error {
		_, err := c.Add(product("A", 10, 5), 1)
		return err
	}))

	ana := r.Get("ana")
	luis := r.Get("luis")
	assert.Equal(t, 1, ana.Len())
	assert.Equal(t, 0, luis.Len())

	r.Clear("ana")
	ana = r.Get("ana")
	assert.Equal(t, 0, ana.Len())
}
