package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
	"github.com/josearceinfo-star/sermagri/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPersister struct {
	mu    sync.Mutex
	saves []domain.StateDocument
	fail  error
}

func (p *recordingPersister) Save(_ context.Context, doc domain.StateDocument) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saves = append(p.saves, doc)
	return nil
}

func sale(items ...domain.SaleItem) domain.Sale {
	return domain.Sale{Items: items, TaxRate: reconcile.DefaultTaxRate}
}

func TestCreateSessionKeepsSingleOpenSession(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	first, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("5000")})
	require.NoError(t, err)

	existing, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("9000")})
	require.ErrorIs(t, err, store.ErrSessionAlreadyOpen)
	require.NotNil(t, existing)
	assert.Equal(t, first.ID, existing.ID)
	assert.True(t, existing.OpeningBalance.Equal(dec("5000")))

	sessions, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestCreateSessionConcurrentOpensOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	opened := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("100")}); err == nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
}

func TestCreateSessionRejectsNegativeBalance(t *testing.T) {
	_, err := New().CreateSession(context.Background(), domain.Session{OpeningBalance: dec("-1")})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestCloseActiveSessionComputesClosingBalance(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("10000")})
	require.NoError(t, err)
	_, err = s.AppendCashTransaction(ctx, domain.CashTransaction{Type: domain.TransactionIncome, Amount: dec("2000"), Reason: "cambio"})
	require.NoError(t, err)
	_, err = s.AppendCashTransaction(ctx, domain.CashTransaction{Type: domain.TransactionExpense, Amount: dec("500"), Reason: "  flete  "})
	require.NoError(t, err)
	created, err := s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-005", Quantity: 1}))
	require.NoError(t, err)
	require.True(t, created.Total.Equal(dec("9520")))

	closedAt := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	closed, err := s.CloseActiveSession(ctx, dec("21000"), closedAt)
	require.NoError(t, err)

	require.NotNil(t, closed.ClosingBalance)
	assert.True(t, closed.ClosingBalance.Equal(dec("21020")), "closing %s", closed.ClosingBalance)
	assert.True(t, closed.CountedBalance.Equal(dec("21000")))
	assert.Equal(t, closedAt, *closed.EndDate)

	txs, err := s.ListCashTransactions(ctx, closed.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "flete", txs[1].Reason)

	sales, err := s.ListSales(ctx, domain.SaleFilter{SessionID: closed.ID})
	require.NoError(t, err)
	recomputed := reconcile.ExpectedBalance(*closed, sales, txs)
	assert.True(t, recomputed.Equal(*closed.ClosingBalance))

	_, err = s.CloseActiveSession(ctx, dec("21000"), time.Time{})
	assert.ErrorIs(t, err, store.ErrNoActiveSession)
}

func TestAppendCashTransactionValidation(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.AppendCashTransaction(ctx, domain.CashTransaction{Type: domain.TransactionIncome, Amount: dec("10"), Reason: "x"})
	assert.ErrorIs(t, err, store.ErrNoActiveSession)

	_, err = s.CreateSession(ctx, domain.Session{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		entry domain.CashTransaction
		want  error
	}{
		{name: "zero amount", entry: domain.CashTransaction{Type: domain.TransactionIncome, Amount: decimal.Zero, Reason: "x"}, want: store.ErrInvalidAmount},
		{name: "negative amount", entry: domain.CashTransaction{Type: domain.TransactionExpense, Amount: dec("-5"), Reason: "x"}, want: store.ErrInvalidAmount},
		{name: "blank reason", entry: domain.CashTransaction{Type: domain.TransactionExpense, Amount: dec("5"), Reason: "   "}, want: store.ErrInvalidInput},
		{name: "bad type", entry: domain.CashTransaction{Type: "refund", Amount: dec("5"), Reason: "x"}, want: store.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AppendCashTransaction(ctx, tt.entry)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateSaleRequiresOpenSession(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-001", Quantity: 1}))
	require.ErrorIs(t, err, store.ErrNoActiveSession)

	product, err := s.GetProduct(ctx, "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, 120, product.Stock)
	assert.Empty(t, s.Snapshot().Sales)
}

func TestCreateSaleSnapshotsPriceAndDecrementsStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	_, err := s.CreateSession(ctx, domain.Session{})
	require.NoError(t, err)

	created, err := s.CreateSale(ctx, sale(
		domain.SaleItem{ProductID: "PROD-001", Quantity: 2, Price: dec("1")},
		domain.SaleItem{ProductID: "PROD-005", Quantity: 1},
	))
	require.NoError(t, err)
	assert.True(t, created.Items[0].Price.Equal(dec("15000")), "caller price must be ignored")
	assert.True(t, created.Subtotal.Equal(dec("38000")))
	assert.True(t, created.Total.Equal(dec("45220")))
	assert.Equal(t, domain.PaymentCash, created.PaymentMethod)

	product, err := s.GetProduct(ctx, "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, 118, product.Stock)

	product.Price = dec("99999")
	product.CostPrice = dec("1")
	_, err = s.UpsertProduct(ctx, *product)
	require.NoError(t, err)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].Items[0].Price.Equal(dec("15000")))
	assert.True(t, sales[0].Items[0].CostPrice.Equal(dec("9500")))
}

func TestCreateSaleRejectsInsufficientStockAtomically(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	_, err := s.CreateSession(ctx, domain.Session{})
	require.NoError(t, err)

	_, err = s.CreateSale(ctx, sale(
		domain.SaleItem{ProductID: "PROD-005", Quantity: 1},
		domain.SaleItem{ProductID: "PROD-004", Quantity: 30},
		domain.SaleItem{ProductID: "PROD-004", Quantity: 30},
	))
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	glove, _ := s.GetProduct(ctx, "PROD-005")
	kit, _ := s.GetProduct(ctx, "PROD-004")
	assert.Equal(t, 150, glove.Stock)
	assert.Equal(t, 50, kit.Stock)
}

func TestCreateSaleErrors(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	_, err := s.CreateSession(ctx, domain.Session{})
	require.NoError(t, err)

	_, err = s.CreateSale(ctx, sale())
	assert.ErrorIs(t, err, store.ErrEmptyCart)

	_, err = s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-404", Quantity: 1}))
	assert.ErrorIs(t, err, store.ErrNotFound)

	bad := sale(domain.SaleItem{ProductID: "PROD-001", Quantity: 1})
	bad.ClientID = "CLI-404"
	_, err = s.CreateSale(ctx, bad)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	short := dec("100")
	cash := sale(domain.SaleItem{ProductID: "PROD-001", Quantity: 1})
	cash.CashReceived = &short
	_, err = s.CreateSale(ctx, cash)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestCreateSaleComputesChange(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	_, err := s.CreateSession(ctx, domain.Session{})
	require.NoError(t, err)

	received := dec("20000")
	cash := sale(domain.SaleItem{ProductID: "PROD-006", Quantity: 1})
	cash.CashReceived = &received
	created, err := s.CreateSale(ctx, cash)
	require.NoError(t, err)
	require.NotNil(t, created.Change)
	assert.True(t, created.Change.Equal(dec("5720")), "change %s", created.Change)

	card := sale(domain.SaleItem{ProductID: "PROD-006", Quantity: 1})
	card.PaymentMethod = domain.PaymentDebit
	card.CashReceived = &received
	created, err = s.CreateSale(ctx, card)
	require.NoError(t, err)
	assert.Nil(t, created.CashReceived)
	assert.Nil(t, created.Change)
}

func TestListSalesMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	_, err := s.CreateSession(ctx, domain.Session{})
	require.NoError(t, err)

	first, err := s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-001", Quantity: 1}))
	require.NoError(t, err)
	second, err := s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-002", Quantity: 1}))
	require.NoError(t, err)

	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, second.ID, sales[0].ID)
	assert.Equal(t, first.ID, sales[1].ID)

	limited, err := s.ListSales(ctx, domain.SaleFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = s.ListSales(ctx, domain.SaleFilter{SessionID: "SES-404"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStockOperations(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	p, err := s.IncrementStock(ctx, "PROD-004", 10)
	require.NoError(t, err)
	assert.Equal(t, 60, p.Stock)

	p, err = s.DecrementStock(ctx, "PROD-004", 60)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	_, err = s.DecrementStock(ctx, "PROD-004", 1)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	_, err = s.IncrementStock(ctx, "PROD-004", 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = s.IncrementStock(ctx, "PROD-404", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListingsAreSorted(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, p := range []domain.Product{
		{ID: "Z-1", Name: "Zapallo", Category: "Verduras", Price: dec("900"), CostPrice: dec("500")},
		{ID: "A-2", Name: "Azadón", Category: "Herramientas", Price: dec("9000"), CostPrice: dec("6000")},
		{ID: "A-1", Name: "Acelga", Category: "Verduras", Price: dec("700"), CostPrice: dec("400")},
	} {
		_, err := s.UpsertProduct(ctx, p)
		require.NoError(t, err)
	}

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Azadón", "Acelga", "Zapallo"}, names)

	doc := s.Snapshot()
	require.Len(t, doc.Products, 3)
	assert.Equal(t, "A-1", doc.Products[0].ID)
	assert.Equal(t, "Z-1", doc.Products[2].ID)
}

func TestPersisterReceivesEveryMutation(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	s := NewSeeded(WithPersister(p))

	_, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("1000")})
	require.NoError(t, err)
	_, err = s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-001", Quantity: 1}))
	require.NoError(t, err)

	require.Len(t, p.saves, 2)
	last := p.saves[1]
	assert.Len(t, last.Sessions, 1)
	assert.Len(t, last.Sales, 1)
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	s := NewSeeded(WithPersister(p))
	_, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("1000")})
	require.NoError(t, err)

	p.fail = errors.New("disk full")
	_, err = s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-001", Quantity: 3}))
	require.Error(t, err)

	product, err := s.GetProduct(ctx, "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, 120, product.Stock)
	assert.Empty(t, s.Snapshot().Sales)

	_, err = s.CloseActiveSession(ctx, dec("1000"), time.Time{})
	require.Error(t, err)
	active, err := s.GetActiveSession(ctx)
	require.NoError(t, err)
	assert.True(t, active.IsOpen())
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	opened, err := s.CreateSession(ctx, domain.Session{OpeningBalance: dec("700")})
	require.NoError(t, err)
	_, err = s.CreateSale(ctx, sale(domain.SaleItem{ProductID: "PROD-003", Quantity: 2}))
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.Restore(s.Snapshot()))

	active, err := restored.GetActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, active.ID)
	product, err := restored.GetProduct(ctx, "PROD-003")
	require.NoError(t, err)
	assert.Equal(t, 198, product.Stock)

	_, err = restored.CreateSession(ctx, domain.Session{})
	assert.ErrorIs(t, err, store.ErrSessionAlreadyOpen)
}

func TestRestoreRejectsTwoOpenSessions(t *testing.T) {
	doc := domain.StateDocument{Sessions: []domain.Session{{ID: "A"}, {ID: "B"}}}
	assert.ErrorIs(t, New().Restore(doc), store.ErrInvalidInput)
}
