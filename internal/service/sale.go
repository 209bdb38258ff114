package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/receipt"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

// CreateSale commits a sale against the open session. Price, cost and stock
// are taken from the catalog atomically with the insert; a receipt failure
// is logged and never undoes the sale.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	if len(req.Items) == 0 {
		return domain.SaleResponse{}, store.ErrEmptyCart
	}
	items, err := normalizeItems(req.Items)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	switch req.PaymentMethod {
	case "", domain.PaymentCash, domain.PaymentDebit, domain.PaymentCredit:
	default:
		return domain.SaleResponse{}, fmt.Errorf("payment method %q: %w", req.PaymentMethod, store.ErrInvalidInput)
	}
	if req.CashReceived != nil && req.CashReceived.IsNegative() {
		return domain.SaleResponse{}, store.ErrInvalidAmount
	}

	saved, err := s.repo.CreateSale(ctx, domain.Sale{
		Date:          s.now(),
		Items:         items,
		TaxRate:       s.taxRate,
		ClientID:      req.ClientID,
		PaymentMethod: req.PaymentMethod,
		CashReceived:  req.CashReceived,
	})
	if err != nil {
		return domain.SaleResponse{}, err
	}
	s.invalidate(ctx, saved.SessionID)

	profit := reconcile.GrossProfit(*saved)
	s.logAudit(ctx, "sale_create", saved.ID,
		zap.String("session_id", saved.SessionID),
		zap.String("total", saved.Total.String()),
		zap.String("payment_method", saved.PaymentMethod),
		zap.Int("lines", len(saved.Items)),
	)

	ticket := s.buildTicket(ctx, *saved)
	if err := s.receipts.Dispatch(ctx, ticket); err != nil {
		s.logger.Warn("receipt dispatch failed", zap.String("sale_id", saved.ID), zap.Error(err))
	}
	s.emit(domain.SessionEvent{
		Type:      domain.EventSaleCreated,
		SessionID: saved.SessionID,
		SaleID:    saved.ID,
	})

	return domain.SaleResponse{
		Sale:           *saved,
		TotalDisplay:   reconcile.Display(saved.Total),
		GrossProfit:    profit,
		ReceiptPreview: receipt.Render(ticket),
	}, nil
}

// ListSales returns history most recent first.
func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) SalesForSession(ctx context.Context, sessionID string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, domain.SaleFilter{SessionID: sessionID})
}

func (s *Service) buildTicket(ctx context.Context, sale domain.Sale) receipt.Ticket {
	names := make(map[string]string, len(sale.Items))
	for _, item := range sale.Items {
		if _, seen := names[item.ProductID]; seen {
			continue
		}
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("receipt product lookup", zap.String("product_id", item.ProductID), zap.Error(err))
			}
			continue
		}
		names[item.ProductID] = product.Name
	}

	var client *domain.Client
	if sale.ClientID != "" {
		found, err := s.repo.GetClient(ctx, sale.ClientID)
		if err == nil {
			client = found
		}
	}
	return receipt.Build(sale, names, client, s.company)
}

// normalizeItems merges duplicate products, keeping first-seen order. Any
// line without a product or with a non-positive quantity rejects the sale.
func normalizeItems(lines []domain.SaleLine) ([]domain.SaleItem, error) {
	index := make(map[string]int, len(lines))
	items := make([]domain.SaleItem, 0, len(lines))
	for i, line := range lines {
		if line.ProductID == "" {
			return nil, fmt.Errorf("line %d has no product: %w", i+1, store.ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line %d quantity must be positive: %w", i+1, store.ErrInvalidInput)
		}
		if i, ok := index[line.ProductID]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(items)
		items = append(items, domain.SaleItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return items, nil
}
