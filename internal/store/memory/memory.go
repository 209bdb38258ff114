package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
	"github.com/josearceinfo-star/sermagri/internal/store"
	"github.com/josearceinfo-star/sermagri/internal/xid"
)

// Persister receives the whole state after every successful mutation.
type Persister interface {
	Save(ctx context.Context, doc domain.StateDocument) error
}

type Option func(*Store)

// WithPersister makes every mutation durable. A failed save rolls the
// mutation back and is returned to the caller.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type Store struct {
	mu               sync.RWMutex
	persister        Persister
	logger           *zap.Logger
	products         map[string]domain.Product
	clients          map[string]domain.Client
	sessions         []domain.Session
	sessionIdx       map[string]int
	activeSessionID  string
	sales            []domain.Sale
	cashTransactions []domain.CashTransaction
	usersByUsername  map[string]domain.UserAccount
}

func New(opts ...Option) *Store {
	s := &Store{
		logger:          zap.NewNop(),
		products:        make(map[string]domain.Product),
		clients:         make(map[string]domain.Client),
		sessionIdx:      make(map[string]int),
		usersByUsername: make(map[string]domain.UserAccount),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// seedUsers builds the demo accounts. Passwords come from SEED_ADMIN_PASSWORD
// and SEED_USER_PASSWORD, falling back to dev defaults with a warning.
func seedUsers(logger *zap.Logger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	userPwd := envOr("SEED_USER_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_USER_PASSWORD") == "" {
		logger.Warn("using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"vendedor", userPwd, domain.RoleUser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// NewSeeded returns a store with the demo catalog, clients and users.
func NewSeeded(opts ...Option) *Store {
	s := New(opts...)
	for _, p := range []domain.Product{
		{ID: "PROD-001", Name: "Fertilizante Nitro Full", Category: "Fertilizantes", Price: money(15000), CostPrice: money(9500), Stock: 120},
		{ID: "PROD-002", Name: "Semillas de Maíz Híbrido", Category: "Semillas", Price: money(25000), CostPrice: money(18000), Stock: 80},
		{ID: "PROD-003", Name: "Herbicida Selectivo Maleza Cero", Category: "Pesticidas", Price: money(22500), CostPrice: money(15000), Stock: 200},
		{ID: "PROD-004", Name: "Riego por Goteo Kit Básico", Category: "Riego", Price: money(45000), CostPrice: money(32000), Stock: 50},
		{ID: "PROD-005", Name: "Guantes de Trabajo Reforzados", Category: "Herramientas", Price: money(8000), CostPrice: money(4500), Stock: 150},
		{ID: "PROD-006", Name: "Pala de Punta Redonda", Category: "Herramientas", Price: money(12000), CostPrice: money(7000), Stock: 95},
		{ID: "PROD-007", Name: "Sustrato Premium 50L", Category: "Sustratos", Price: money(18000), CostPrice: money(11500), Stock: 110},
		{ID: "PROD-008", Name: "Fungicida Hongo Stop", Category: "Pesticidas", Price: money(19500), CostPrice: money(13000), Stock: 75},
	} {
		s.products[p.ID] = p
	}
	for _, c := range []domain.Client{
		{ID: "CLI-001", Name: "Agrícola Los Robles", RUT: "76.123.456-7", Email: "compras@losrobles.cl", Phone: "+56 9 1234 5678", Address: "Camino Real 1200, Talca"},
		{ID: "CLI-002", Name: "Juan Pérez", RUT: "12.345.678-9", Phone: "+56 9 8765 4321", Address: "Parcela 14, San Clemente"},
	} {
		s.clients[c.ID] = c
	}
	s.usersByUsername = seedUsers(s.logger)
	return s
}

// Snapshot returns a deep copy of the persisted state.
func (s *Store) Snapshot() domain.StateDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Restore replaces all persisted state with doc. Users are kept.
func (s *Store) Restore(doc domain.StateDocument) error {
	open := 0
	for _, session := range doc.Sessions {
		if session.IsOpen() {
			open++
		}
	}
	if open > 1 {
		return fmt.Errorf("restore: %d open sessions: %w", open, store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(doc)
	return nil
}

func (s *Store) snapshotLocked() domain.StateDocument {
	doc := domain.StateDocument{
		Products:         make([]domain.Product, 0, len(s.products)),
		Clients:          make([]domain.Client, 0, len(s.clients)),
		Sessions:         slices.Clone(s.sessions),
		Sales:            make([]domain.Sale, 0, len(s.sales)),
		CashTransactions: slices.Clone(s.cashTransactions),
	}
	for _, p := range s.products {
		doc.Products = append(doc.Products, p)
	}
	slices.SortFunc(doc.Products, func(a, b domain.Product) int { return cmp.Compare(a.ID, b.ID) })
	for _, c := range s.clients {
		doc.Clients = append(doc.Clients, c)
	}
	slices.SortFunc(doc.Clients, func(a, b domain.Client) int { return cmp.Compare(a.ID, b.ID) })
	for _, sale := range s.sales {
		doc.Sales = append(doc.Sales, cloneSale(sale))
	}
	if doc.Sessions == nil {
		doc.Sessions = []domain.Session{}
	}
	if doc.CashTransactions == nil {
		doc.CashTransactions = []domain.CashTransaction{}
	}
	return doc
}

func (s *Store) restoreLocked(doc domain.StateDocument) {
	s.products = make(map[string]domain.Product, len(doc.Products))
	for _, p := range doc.Products {
		s.products[p.ID] = p
	}
	s.clients = make(map[string]domain.Client, len(doc.Clients))
	for _, c := range doc.Clients {
		s.clients[c.ID] = c
	}
	s.sessions = slices.Clone(doc.Sessions)
	s.sessionIdx = make(map[string]int, len(s.sessions))
	s.activeSessionID = ""
	for i, session := range s.sessions {
		s.sessionIdx[session.ID] = i
		if session.IsOpen() {
			s.activeSessionID = session.ID
		}
	}
	s.sales = make([]domain.Sale, 0, len(doc.Sales))
	for _, sale := range doc.Sales {
		s.sales = append(s.sales, cloneSale(sale))
	}
	s.cashTransactions = slices.Clone(doc.CashTransactions)
}

// checkpoint captures the state to roll back to if persisting fails.
func (s *Store) checkpoint() *domain.StateDocument {
	if s.persister == nil {
		return nil
	}
	doc := s.snapshotLocked()
	return &doc
}

func (s *Store) commit(ctx context.Context, prev *domain.StateDocument) error {
	if s.persister == nil || prev == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.snapshotLocked()); err != nil {
		s.restoreLocked(*prev)
		s.logger.Error("persist state failed, mutation rolled back", zap.Error(err))
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(&product); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.checkpoint()
	s.products[product.ID] = product
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Stock < qty {
		return nil, fmt.Errorf("product %s has %d, need %d: %w", id, product.Stock, qty, store.ErrInsufficientStock)
	}
	prev := s.checkpoint()
	product.Stock -= qty
	s.products[id] = product
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	prev := s.checkpoint()
	product.Stock += qty
	s.products[id] = product
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &client, nil
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSessionID != "" {
		existing := s.sessions[s.sessionIdx[s.activeSessionID]]
		return &existing, store.ErrSessionAlreadyOpen
	}
	if session.OpeningBalance.IsNegative() {
		return nil, store.ErrInvalidAmount
	}
	if session.ID == "" {
		session.ID = xid.New("ses")
	}
	if _, exists := s.sessionIdx[session.ID]; exists {
		return nil, fmt.Errorf("session %s exists: %w", session.ID, store.ErrInvalidInput)
	}
	if session.StartDate.IsZero() {
		session.StartDate = time.Now().UTC()
	}
	session.EndDate = nil
	session.ClosingBalance = nil
	session.CountedBalance = nil

	prev := s.checkpoint()
	s.sessionIdx[session.ID] = len(s.sessions)
	s.sessions = append(s.sessions, session)
	s.activeSessionID = session.ID
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) GetActiveSession(_ context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeSessionID == "" {
		return nil, store.ErrNoActiveSession
	}
	session := s.sessions[s.sessionIdx[s.activeSessionID]]
	return &session, nil
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.sessionIdx[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	session := s.sessions[idx]
	return &session, nil
}

// ListSessions returns sessions most recent first.
func (s *Store) ListSessions(_ context.Context, limit int) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(s.sessions))
	for i := len(s.sessions) - 1; i >= 0; i-- {
		sessions = append(sessions, s.sessions[i])
		if limit > 0 && len(sessions) == limit {
			break
		}
	}
	return sessions, nil
}

func (s *Store) CloseActiveSession(ctx context.Context, counted decimal.Decimal, closedAt time.Time) (*domain.Session, error) {
	if counted.IsNegative() {
		return nil, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSessionID == "" {
		return nil, store.ErrNoActiveSession
	}
	idx := s.sessionIdx[s.activeSessionID]
	session := s.sessions[idx]

	closing := reconcile.ExpectedBalance(session, s.sales, s.cashTransactions)
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	prev := s.checkpoint()
	session.EndDate = &closedAt
	session.ClosingBalance = &closing
	session.CountedBalance = &counted
	s.sessions[idx] = session
	s.activeSessionID = ""
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) AppendCashTransaction(ctx context.Context, entry domain.CashTransaction) (*domain.CashTransaction, error) {
	if !entry.Type.Valid() {
		return nil, fmt.Errorf("transaction type %q: %w", entry.Type, store.ErrInvalidInput)
	}
	if !entry.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}
	entry.Reason = strings.TrimSpace(entry.Reason)
	if entry.Reason == "" {
		return nil, fmt.Errorf("reason is required: %w", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSessionID == "" {
		return nil, store.ErrNoActiveSession
	}
	if entry.ID == "" {
		entry.ID = xid.New("mov")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	entry.SessionID = s.activeSessionID

	prev := s.checkpoint()
	s.cashTransactions = append(s.cashTransactions, entry)
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListCashTransactions returns a session's entries in insertion order.
func (s *Store) ListCashTransactions(_ context.Context, sessionID string) ([]domain.CashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.sessionIdx[sessionID]; !exists {
		return nil, store.ErrNotFound
	}
	entries := make([]domain.CashTransaction, 0)
	for _, entry := range s.cashTransactions {
		if entry.SessionID == sessionID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSessionID == "" {
		return nil, store.ErrNoActiveSession
	}
	if sale.ClientID != "" {
		if _, exists := s.clients[sale.ClientID]; !exists {
			return nil, fmt.Errorf("client %s: %w", sale.ClientID, store.ErrInvalidInput)
		}
	}

	needed := make(map[string]int, len(sale.Items))
	items := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %s quantity %d: %w", item.ProductID, item.Quantity, store.ErrInvalidInput)
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, store.ErrNotFound)
		}
		needed[item.ProductID] += item.Quantity
		if product.Stock < needed[item.ProductID] {
			return nil, fmt.Errorf("product %s has %d, need %d: %w", product.ID, product.Stock, needed[item.ProductID], store.ErrInsufficientStock)
		}
		items = append(items, domain.SaleItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Price:     product.Price,
			CostPrice: product.CostPrice,
		})
	}

	sale.Items = items
	sale.Subtotal, sale.Tax, sale.Total = reconcile.SaleTotals(items, sale.TaxRate)
	if err := store.SettlePayment(&sale); err != nil {
		return nil, err
	}
	if sale.ID == "" {
		sale.ID = xid.New("vta")
	}
	if sale.Date.IsZero() {
		sale.Date = time.Now().UTC()
	}
	sale.SessionID = s.activeSessionID

	prev := s.checkpoint()
	for productID, qty := range needed {
		product := s.products[productID]
		product.Stock -= qty
		s.products[productID] = product
	}
	s.sales = append(s.sales, sale)
	if err := s.commit(ctx, prev); err != nil {
		return nil, err
	}
	created := cloneSale(sale)
	return &created, nil
}

// ListSales returns sales most recent first.
func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.SessionID != "" {
		if _, exists := s.sessionIdx[filter.SessionID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	sales := make([]domain.Sale, 0)
	for i := len(s.sales) - 1; i >= 0; i-- {
		sale := s.sales[i]
		if filter.SessionID != "" && sale.SessionID != filter.SessionID {
			continue
		}
		sales = append(sales, cloneSale(sale))
		if filter.Limit > 0 && len(sales) == filter.Limit {
			break
		}
	}
	return sales, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func validateProduct(product *domain.Product) error {
	product.ID = strings.TrimSpace(product.ID)
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.TrimSpace(product.Category)
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.Name == "" || product.Category == "" {
		return fmt.Errorf("product name and category are required: %w", store.ErrInvalidInput)
	}
	if product.Price.IsNegative() || product.CostPrice.IsNegative() || product.Stock < 0 {
		return fmt.Errorf("product %s has negative values: %w", product.ID, store.ErrInvalidInput)
	}
	return nil
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = slices.Clone(src.Items)
	return dst
}
