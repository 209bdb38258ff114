package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josearceinfo-star/sermagri/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyCart          = errors.New("empty cart")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrSessionAlreadyOpen = errors.New("session already open")
	ErrNoActiveSession    = errors.New("no active session")
)

// Catalog is the product collaborator consumed by the sale engine.
type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error)
	IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error)
}

// Repository owns sessions, cash movements and sales. Every mutating call is
// a single atomic check-and-write; a failed call leaves state unchanged.
type Repository interface {
	Catalog

	GetClient(ctx context.Context, id string) (*domain.Client, error)

	// CreateSession returns the already open session together with
	// ErrSessionAlreadyOpen when one exists.
	CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error)
	GetActiveSession(ctx context.Context) (*domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	ListSessions(ctx context.Context, limit int) ([]domain.Session, error)
	// CloseActiveSession stamps end date, counted balance and the closing
	// balance recomputed from the session's sales and transactions.
	CloseActiveSession(ctx context.Context, counted decimal.Decimal, closedAt time.Time) (*domain.Session, error)

	// AppendCashTransaction stamps the open session id on the entry.
	AppendCashTransaction(ctx context.Context, entry domain.CashTransaction) (*domain.CashTransaction, error)
	ListCashTransactions(ctx context.Context, sessionID string) ([]domain.CashTransaction, error)

	// CreateSale snapshots catalog price and cost into each item, checks and
	// decrements stock, computes totals and stamps the open session id.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
