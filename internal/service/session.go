package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

// OpenSession starts a cash session. When one is already open it is
// returned unchanged together with store.ErrSessionAlreadyOpen.
func (s *Service) OpenSession(ctx context.Context, req domain.SessionOpenRequest) (domain.SessionResponse, error) {
	if req.OpeningBalance.IsNegative() {
		return domain.SessionResponse{}, store.ErrInvalidAmount
	}

	saved, err := s.repo.CreateSession(ctx, domain.Session{
		StartDate:      s.now(),
		OpeningBalance: req.OpeningBalance,
		OpenedBy:       actorName(ctx),
	})
	if err != nil {
		if errors.Is(err, store.ErrSessionAlreadyOpen) && saved != nil {
			return domain.SessionResponse{Session: *saved, NextView: domain.ViewPOS}, err
		}
		return domain.SessionResponse{}, err
	}

	s.logAudit(ctx, "session_open", saved.ID, zap.String("opening_balance", saved.OpeningBalance.String()))
	s.emit(domain.SessionEvent{
		Type:      domain.EventSessionOpened,
		SessionID: saved.ID,
		NextView:  domain.ViewPOS,
	})
	return domain.SessionResponse{Session: *saved, NextView: domain.ViewPOS}, nil
}

// CloseSession ends the open session. The closing balance is computed by the
// store inside the same atomic operation.
func (s *Service) CloseSession(ctx context.Context, req domain.SessionCloseRequest) (domain.SessionCloseResponse, error) {
	if req.CountedBalance.IsNegative() {
		return domain.SessionCloseResponse{}, store.ErrInvalidAmount
	}

	closed, err := s.repo.CloseActiveSession(ctx, req.CountedBalance, s.now())
	if err != nil {
		return domain.SessionCloseResponse{}, err
	}
	s.invalidate(ctx, closed.ID)

	summary, err := s.buildSummary(ctx, *closed)
	if err != nil {
		return domain.SessionCloseResponse{}, err
	}

	fields := []zap.Field{
		zap.String("closing_balance", closed.ClosingBalance.String()),
		zap.String("counted_balance", closed.CountedBalance.String()),
	}
	if summary.Variance != nil {
		fields = append(fields, zap.String("variance", summary.Variance.String()), zap.String("status", summary.VarianceStatus))
	}
	s.logAudit(ctx, "session_close", closed.ID, fields...)
	s.emit(domain.SessionEvent{
		Type:      domain.EventSessionClosed,
		SessionID: closed.ID,
		NextView:  domain.ViewCashRegister,
		Variance:  summary.Variance,
	})

	return domain.SessionCloseResponse{Session: *closed, Summary: summary, NextView: domain.ViewCashRegister}, nil
}

func (s *Service) ActiveSession(ctx context.Context) (domain.Session, error) {
	session, err := s.repo.GetActiveSession(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	return *session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (domain.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	return *session, nil
}

// ListSessions returns history most recent first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	return s.repo.ListSessions(ctx, limit)
}
