package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
)

// SessionSummary reports the live or final figures of a session. Open
// sessions are served from the balance cache when possible.
func (s *Service) SessionSummary(ctx context.Context, id string) (domain.SessionSummary, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	if !session.IsOpen() {
		return s.buildSummary(ctx, *session)
	}

	if cached, found, err := s.cache.Get(ctx, id); err != nil {
		s.logger.Warn("balance cache get", zap.String("session_id", id), zap.Error(err))
	} else if found {
		return *cached, nil
	}

	// The build is shared by every joined caller and must outlive the first one.
	buildCtx := context.WithoutCancel(ctx)
	result := s.summaries.DoChan(id, func() (any, error) {
		version := s.summaryVersion(id)
		summary, err := s.buildSummary(buildCtx, *session)
		if err != nil {
			return nil, err
		}
		s.storeSummary(buildCtx, id, version, &summary)
		return summary, nil
	})
	select {
	case <-ctx.Done():
		return domain.SessionSummary{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return domain.SessionSummary{}, res.Err
		}
		summary, ok := res.Val.(domain.SessionSummary)
		if !ok {
			return domain.SessionSummary{}, fmt.Errorf("unexpected summary type %T", res.Val)
		}
		return summary, nil
	}
}

func (s *Service) buildSummary(ctx context.Context, session domain.Session) (domain.SessionSummary, error) {
	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{SessionID: session.ID})
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load sales: %w", err)
	}
	txs, err := s.repo.ListCashTransactions(ctx, session.ID)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load transactions: %w", err)
	}
	return reconcile.Summarize(session, sales, txs), nil
}

// storeSummary caches a summary built at version. A mutation that lands
// during the build or the write leaves nothing cached.
func (s *Service) storeSummary(ctx context.Context, id string, version uint64, summary *domain.SessionSummary) {
	if s.summaryVersion(id) != version {
		return
	}
	if err := s.cache.Set(ctx, id, summary, s.cacheTTL); err != nil {
		s.logger.Warn("balance cache set", zap.String("session_id", id), zap.Error(err))
		return
	}
	if s.summaryVersion(id) != version {
		s.dropSummary(ctx, id)
	}
}

func (s *Service) summaryVersion(sessionID string) uint64 {
	s.versionsMu.Lock()
	defer s.versionsMu.Unlock()
	return s.versions[sessionID]
}

// invalidate bumps the session version before dropping the cached summary.
func (s *Service) invalidate(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	s.versionsMu.Lock()
	s.versions[sessionID]++
	s.versionsMu.Unlock()
	s.dropSummary(ctx, sessionID)
}

func (s *Service) dropSummary(ctx context.Context, sessionID string) {
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("balance cache delete", zap.String("session_id", sessionID), zap.Error(err))
	}
}
