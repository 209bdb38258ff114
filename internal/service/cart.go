package service

import (
	"context"
	"errors"

	"github.com/josearceinfo-star/sermagri/internal/cart"
	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

// Cart returns the operator's transient cart. Carts are never persisted.
func (s *Service) Cart(ctx context.Context) domain.CartResponse {
	c := s.carts.Get(actorName(ctx))
	return s.cartView(&c)
}

func (s *Service) AddToCart(ctx context.Context, req domain.CartItemRequest) (domain.CartResponse, error) {
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.CartResponse{}, err
	}
	return s.updateCart(ctx, func(c *cart.Cart) error {
		_, err := c.Add(*product, req.Quantity)
		return err
	})
}

func (s *Service) SetCartQuantity(ctx context.Context, productID string, qty int) (domain.CartResponse, error) {
	stock := 0
	product, err := s.repo.GetProduct(ctx, productID)
	switch {
	case err == nil:
		stock = product.Stock
	case errors.Is(err, store.ErrNotFound) && qty == 0:
	default:
		return domain.CartResponse{}, err
	}
	return s.updateCart(ctx, func(c *cart.Cart) error {
		return c.SetQuantity(productID, qty, stock)
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, productID string) domain.CartResponse {
	resp, _ := s.updateCart(ctx, func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
	return resp
}

func (s *Service) ClearCart(ctx context.Context) {
	s.carts.Clear(actorName(ctx))
}

// Checkout turns the operator's cart into a sale and empties the cart on
// success. On failure the cart is left as it was.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.SaleResponse, error) {
	owner := actorName(ctx)
	c := s.carts.Get(owner)
	if c.Len() == 0 {
		return domain.SaleResponse{}, store.ErrEmptyCart
	}
	resp, err := s.CreateSale(ctx, domain.SaleRequest{
		Items:         c.Items(),
		PaymentMethod: req.PaymentMethod,
		ClientID:      req.ClientID,
		CashReceived:  req.CashReceived,
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}
	s.carts.Clear(owner)
	return resp, nil
}

func (s *Service) updateCart(ctx context.Context, fn func(*cart.Cart) error) (domain.CartResponse, error) {
	var view domain.CartResponse
	err := s.carts.Update(actorName(ctx), func(c *cart.Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		view = s.cartView(c)
		return nil
	})
	if err != nil {
		return domain.CartResponse{}, err
	}
	return view, nil
}

func (s *Service) cartView(c *cart.Cart) domain.CartResponse {
	subtotal := c.Subtotal()
	tax := subtotal.Mul(s.taxRate)
	return domain.CartResponse{
		Lines:    c.Lines(),
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
