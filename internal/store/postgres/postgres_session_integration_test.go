package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("SERMAGRI_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SERMAGRI_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := s.CloseActiveSession(ctx, decimal.Zero, time.Time{}); err != nil && !errors.Is(err, store.ErrNoActiveSession) {
		t.Fatalf("close leftover session: %v", err)
	}
	return s
}

func TestSessionSaleLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("PROD-IT-%d", stamp)
	if _, err := s.UpsertProduct(ctx, domain.Product{
		ID:        productID,
		Name:      "Producto Integración",
		Category:  "Pruebas",
		Price:     decimal.NewFromInt(1000),
		CostPrice: decimal.NewFromInt(600),
		Stock:     5,
	}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{Items: []domain.SaleItem{{ProductID: productID, Quantity: 1}}}); !errors.Is(err, store.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}

	opened, err := s.CreateSession(ctx, domain.Session{OpeningBalance: decimal.NewFromInt(10000)})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	again, err := s.CreateSession(ctx, domain.Session{OpeningBalance: decimal.NewFromInt(1)})
	if !errors.Is(err, store.ErrSessionAlreadyOpen) {
		t.Fatalf("expected already open, got %v", err)
	}
	if again == nil || again.ID != opened.ID {
		t.Fatalf("expected existing session %s, got %+v", opened.ID, again)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		Items:   []domain.SaleItem{{ProductID: productID, Quantity: 2}},
		TaxRate: decimal.RequireFromString("0.19"),
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Total.Equal(decimal.NewFromInt(2380)) {
		t.Fatalf("expected total 2380, got %s", sale.Total)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{Items: []domain.SaleItem{{ProductID: productID, Quantity: 4}}}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", product.Stock)
	}

	if _, err := s.AppendCashTransaction(ctx, domain.CashTransaction{
		Type:   domain.TransactionExpense,
		Amount: decimal.NewFromInt(380),
		Reason: "flete",
	}); err != nil {
		t.Fatalf("append transaction: %v", err)
	}

	closed, err := s.CloseActiveSession(ctx, decimal.NewFromInt(12000), time.Time{})
	if err != nil {
		t.Fatalf("close session: %v", err)
	}
	if !closed.ClosingBalance.Equal(decimal.NewFromInt(12000)) {
		t.Fatalf("expected closing 12000, got %s", closed.ClosingBalance)
	}

	sales, err := s.ListSales(ctx, domain.SaleFilter{SessionID: opened.ID})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || len(sales[0].Items) != 1 || !sales[0].Items[0].CostPrice.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("unexpected sales %+v", sales)
	}
}

func TestCashTransactionWaitingOnCloseIsRejected(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	opened, err := s.CreateSession(ctx, domain.Session{OpeningBalance: decimal.NewFromInt(5000)})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	closing, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		t.Fatalf("begin close: %v", err)
	}
	defer func() { _ = closing.Rollback() }()
	if _, err := closing.ExecContext(ctx, `SELECT id FROM cash_sessions WHERE id = $1 FOR UPDATE`, opened.ID); err != nil {
		t.Fatalf("lock session: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.AppendCashTransaction(ctx, domain.CashTransaction{
			Type:   domain.TransactionIncome,
			Amount: decimal.NewFromInt(700),
			Reason: "aporte tardío",
		})
		done <- err
	}()

	time.Sleep(200 * time.Millisecond)
	if _, err := closing.ExecContext(ctx, `
		UPDATE cash_sessions SET end_date = now(), closing_balance = opening_balance, counted_balance = opening_balance
		WHERE id = $1
	`, opened.ID); err != nil {
		t.Fatalf("close session: %v", err)
	}
	if err := closing.Commit(); err != nil {
		t.Fatalf("commit close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, store.ErrNoActiveSession) {
			t.Fatalf("expected no active session, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("append did not finish after close committed")
	}

	txs, err := s.ListCashTransactions(ctx, opened.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no entries on closed session, got %+v", txs)
	}
}
