package cache

import (
	"context"
	"time"

	"github.com/josearceinfo-star/sermagri/internal/domain"
)

// BalanceCache stores live session summaries keyed by session id.
type BalanceCache interface {
	Get(ctx context.Context, sessionID string) (*domain.SessionSummary, bool, error)
	Set(ctx context.Context, sessionID string, value *domain.SessionSummary, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

type NoopBalanceCache struct{}

func (NoopBalanceCache) Get(_ context.Context, _ string) (*domain.SessionSummary, bool, error) {
	return nil, false, nil
}

func (NoopBalanceCache) Set(_ context.Context, _ string, _ *domain.SessionSummary, _ time.Duration) error {
	return nil
}

func (NoopBalanceCache) Delete(_ context.Context, _ string) error {
	return nil
}
