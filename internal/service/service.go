package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/josearceinfo-star/sermagri/internal/cache"
	"github.com/josearceinfo-star/sermagri/internal/cart"
	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/receipt"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// TaxRate defaults to the standard IVA rate when nil. Zero is tax exempt.
	TaxRate  *decimal.Decimal
	Company  domain.CompanyInfo
	Receipts receipt.Dispatcher
	Cache    cache.BalanceCache
	CacheTTL time.Duration
	Logger   *zap.Logger
	// OnEvent is called synchronously after session and sale changes.
	OnEvent func(domain.SessionEvent)
	Now     func() time.Time
}

type Service struct {
	repo      store.Repository
	taxRate   decimal.Decimal
	company   domain.CompanyInfo
	receipts  receipt.Dispatcher
	cache     cache.BalanceCache
	cacheTTL  time.Duration
	logger    *zap.Logger
	onEvent   func(domain.SessionEvent)
	now       func() time.Time
	summaries singleflight.Group
	carts     *cart.Registry

	versionsMu sync.Mutex
	versions   map[string]uint64
}

func New(repo store.Repository, opts Options) *Service {
	taxRate := reconcile.DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Receipts == nil {
		opts.Receipts = receipt.NewLogDispatcher(opts.Logger)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopBalanceCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:     repo,
		taxRate:  taxRate,
		company:  opts.Company,
		receipts: opts.Receipts,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
		onEvent:  opts.OnEvent,
		now:      opts.Now,
		carts:    cart.NewRegistry(),
		versions: make(map[string]uint64),
	}
}

func (s *Service) TaxRate() decimal.Decimal {
	return s.taxRate
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) UpsertProduct(ctx context.Context, id string, req domain.ProductUpsertRequest) (domain.Product, error) {
	saved, err := s.repo.UpsertProduct(ctx, domain.Product{
		ID:        id,
		Name:      req.Name,
		Category:  req.Category,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Stock:     req.Stock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "product_upsert", saved.ID,
		zap.String("price", saved.Price.String()),
		zap.Int("stock", saved.Stock),
	)
	return *saved, nil
}

// Restock is the entry point for received purchases.
func (s *Service) Restock(ctx context.Context, id string, qty int) (domain.Product, error) {
	if qty <= 0 {
		return domain.Product{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	product, err := s.repo.IncrementStock(ctx, id, qty)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, "restock", product.ID, zap.Int("qty", qty), zap.Int("stock", product.Stock))
	return *product, nil
}

func (s *Service) emit(event domain.SessionEvent) {
	if s.onEvent == nil {
		return
	}
	if event.At.IsZero() {
		event.At = s.now()
	}
	s.onEvent(event)
}

func (s *Service) logAudit(ctx context.Context, action string, entityID string, fields ...zap.Field) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	s.logger.Info("audit", append([]zap.Field{
		zap.String("action", action),
		zap.String("entity_id", entityID),
		zap.String("actor", actor.Username),
		zap.String("actor_role", actor.Role),
	}, fields...)...)
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "anonymous"
}
