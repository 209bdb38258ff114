package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

// RecordTransaction appends a manual cash movement to the open session.
// Entries are never edited or deleted.
func (s *Service) RecordTransaction(ctx context.Context, req domain.CashTransactionRequest) (domain.CashTransaction, error) {
	if !req.Type.Valid() {
		return domain.CashTransaction{}, fmt.Errorf("transaction type %q: %w", req.Type, store.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return domain.CashTransaction{}, store.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.CashTransaction{}, fmt.Errorf("reason is required: %w", store.ErrInvalidInput)
	}

	saved, err := s.repo.AppendCashTransaction(ctx, domain.CashTransaction{
		Type:   req.Type,
		Amount: req.Amount,
		Reason: reason,
		Date:   s.now(),
	})
	if err != nil {
		return domain.CashTransaction{}, err
	}
	s.invalidate(ctx, saved.SessionID)
	s.logAudit(ctx, "cash_transaction", saved.ID,
		zap.String("session_id", saved.SessionID),
		zap.String("type", string(saved.Type)),
		zap.String("amount", saved.Amount.String()),
		zap.String("reason", saved.Reason),
	)
	return *saved, nil
}

// TransactionsForSession returns entries in chronological order.
func (s *Service) TransactionsForSession(ctx context.Context, sessionID string) ([]domain.CashTransaction, error) {
	return s.repo.ListCashTransactions(ctx, sessionID)
}
