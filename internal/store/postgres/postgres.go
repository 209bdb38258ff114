package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
	"github.com/josearceinfo-star/sermagri/internal/store"
	"github.com/josearceinfo-star/sermagri/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price, cost_price, stock
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price, cost_price, stock
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.ID = strings.TrimSpace(product.ID)
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.TrimSpace(product.Category)
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.Name == "" || product.Category == "" {
		return nil, fmt.Errorf("product name and category are required: %w", store.ErrInvalidInput)
	}
	if product.Price.IsNegative() || product.CostPrice.IsNegative() || product.Stock < 0 {
		return nil, fmt.Errorf("product %s has negative values: %w", product.ID, store.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, cost_price, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, category = EXCLUDED.category, price = EXCLUDED.price,
			cost_price = EXCLUDED.cost_price, stock = EXCLUDED.stock, updated_at = now()
	`, product.ID, product.Name, product.Category, product.Price, product.CostPrice, product.Stock)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING id, name, category, price, cost_price, stock
	`, id, qty).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetProduct(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("product %s: %w", id, store.ErrInsufficientStock)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) IncrementStock(ctx context.Context, id string, qty int) (*domain.Product, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price, cost_price, stock
	`, id, qty).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.CostPrice, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rut, email, phone, address
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.RUT, &c.Email, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpsertClient is used by seeding; clients have no HTTP write surface.
func (s *Store) UpsertClient(ctx context.Context, c domain.Client) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, rut, email, phone, address)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, rut = EXCLUDED.rut, email = EXCLUDED.email,
			phone = EXCLUDED.phone, address = EXCLUDED.address
	`, c.ID, c.Name, c.RUT, c.Email, c.Phone, c.Address)
	return err
}

const sessionColumns = `id, start_date, end_date, opening_balance, closing_balance, counted_balance, opened_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var endDate sql.NullTime
	var closing, counted decimal.NullDecimal
	if err := row.Scan(&session.ID, &session.StartDate, &endDate, &session.OpeningBalance, &closing, &counted, &session.OpenedBy); err != nil {
		return nil, err
	}
	session.StartDate = session.StartDate.UTC()
	if endDate.Valid {
		at := endDate.Time.UTC()
		session.EndDate = &at
	}
	session.ClosingBalance = nullDecimalPtr(closing)
	session.CountedBalance = nullDecimalPtr(counted)
	return &session, nil
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	if session.OpeningBalance.IsNegative() {
		return nil, store.ErrInvalidAmount
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := scanSession(pgTx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cash_sessions
		WHERE end_date IS NULL
		FOR UPDATE
	`))
	switch {
	case err == nil:
		return existing, store.ErrSessionAlreadyOpen
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	if session.ID == "" {
		session.ID = xid.New("ses")
	}
	if session.StartDate.IsZero() {
		session.StartDate = time.Now().UTC()
	}
	session.EndDate = nil
	session.ClosingBalance = nil
	session.CountedBalance = nil

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO cash_sessions (id, start_date, opening_balance, opened_by)
		VALUES ($1,$2,$3,$4)
	`, session.ID, session.StartDate, session.OpeningBalance, session.OpenedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return s.alreadyOpen(ctx)
		}
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return s.alreadyOpen(ctx)
		}
		return nil, err
	}
	return &session, nil
}

// alreadyOpen resolves a lost race on the single-open index.
func (s *Store) alreadyOpen(ctx context.Context) (*domain.Session, error) {
	existing, err := s.GetActiveSession(ctx)
	if err != nil {
		return nil, store.ErrSessionAlreadyOpen
	}
	return existing, store.ErrSessionAlreadyOpen
}

func (s *Store) GetActiveSession(ctx context.Context) (*domain.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cash_sessions
		WHERE end_date IS NULL
	`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoActiveSession
		}
		return nil, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cash_sessions
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cash_sessions
		ORDER BY seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0, 16)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) CloseActiveSession(ctx context.Context, counted decimal.Decimal, closedAt time.Time) (*domain.Session, error) {
	if counted.IsNegative() {
		return nil, store.ErrInvalidAmount
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	session, err := scanSession(pgTx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM cash_sessions
		WHERE end_date IS NULL
		FOR UPDATE
	`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoActiveSession
		}
		return nil, err
	}

	sales, err := querySaleTotals(ctx, pgTx, session.ID)
	if err != nil {
		return nil, err
	}
	txs, err := queryCashTransactions(ctx, pgTx, session.ID)
	if err != nil {
		return nil, err
	}
	closing := reconcile.ExpectedBalance(*session, sales, txs)

	_, err = pgTx.ExecContext(ctx, `
		UPDATE cash_sessions
		SET end_date = $2, closing_balance = $3, counted_balance = $4
		WHERE id = $1
	`, session.ID, closedAt, closing, counted)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	at := closedAt.UTC()
	session.EndDate = &at
	session.ClosingBalance = &closing
	session.CountedBalance = &counted
	return session, nil
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
	if entry.ID == "" {
		entry.ID = xid.New("mov")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	// Locking the open row orders this entry before or after a concurrent
	// close. Only a close updates an open row, so a serialization failure
	// here means the session ended while we waited.
	err = pgTx.QueryRowContext(ctx, `
		SELECT id FROM cash_sessions WHERE end_date IS NULL FOR UPDATE
	`).Scan(&entry.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isSerializationFailure(err) {
			return nil, store.ErrNoActiveSession
		}
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO cash_transactions (id, session_id, type, amount, reason, date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.SessionID, string(entry.Type), entry.Amount, entry.Reason, entry.Date)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryCashTransactions(ctx context.Context, q queryer, sessionID string) ([]domain.CashTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, type, amount, reason, date
		FROM cash_transactions
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashTransaction, 0, 16)
	for rows.Next() {
		var entry domain.CashTransaction
		var txType string
		if err := rows.Scan(&entry.ID, &entry.SessionID, &txType, &entry.Amount, &entry.Reason, &entry.Date); err != nil {
			return nil, err
		}
		entry.Type = domain.TransactionType(txType)
		entry.Date = entry.Date.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// querySaleTotals loads only what the expected-balance formula needs.
func querySaleTotals(ctx context.Context, q queryer, sessionID string) ([]domain.Sale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, total
		FROM sales
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.SessionID, &sale.Total); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) ListCashTransactions(ctx context.Context, sessionID string) ([]domain.CashTransaction, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return queryCashTransactions(ctx, s.db, sessionID)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var sessionID string
	err = pgTx.QueryRowContext(ctx, `
		SELECT id FROM cash_sessions WHERE end_date IS NULL FOR UPDATE
	`).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoActiveSession
		}
		return nil, err
	}

	if sale.ClientID != "" {
		var exists bool
		if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, sale.ClientID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("client %s: %w", sale.ClientID, store.ErrInvalidInput)
		}
	}

	ids := uniqueProductIDs(sale.Items)
	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, price, cost_price, stock
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	productMap := make(map[string]domain.Product, len(ids))
	for productRows.Next() {
		var p domain.Product
		if err := productRows.Scan(&p.ID, &p.Price, &p.CostPrice, &p.Stock); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[p.ID] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	needed := make(map[string]int, len(ids))
	items := make([]domain.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %s quantity %d: %w", item.ProductID, item.Quantity, store.ErrInvalidInput)
		}
		product, exists := productMap[item.ProductID]
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
	sale.SessionID = sessionID

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, date, session_id, client_id, payment_method,
			subtotal, tax_rate, tax, total, cash_received, change
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, sale.ID, sale.Date, sale.SessionID, nullIfEmpty(sale.ClientID), sale.PaymentMethod,
		sale.Subtotal, sale.TaxRate, sale.Tax, sale.Total, nullDecimal(sale.CashReceived), nullDecimal(sale.Change))
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_no, product_id, quantity, price, cost_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i+1, item.ProductID, item.Quantity, item.Price, item.CostPrice)
		if err != nil {
			return nil, err
		}
	}
	for productID, qty := range needed {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, productID, qty)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.SessionID != "" {
		if _, err := s.GetSession(ctx, filter.SessionID); err != nil {
			return nil, err
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, session_id, COALESCE(client_id, ''), payment_method,
			subtotal, tax_rate, tax, total, cash_received, change
		FROM sales
		WHERE ($1 = '' OR session_id = $1)
		ORDER BY seq DESC
		LIMIT $2
	`, filter.SessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	index := make(map[string]int)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		var cashReceived, change decimal.NullDecimal
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.SessionID, &sale.ClientID, &sale.PaymentMethod,
			&sale.Subtotal, &sale.TaxRate, &sale.Tax, &sale.Total, &cashReceived, &change); err != nil {
			return nil, err
		}
		sale.Date = sale.Date.UTC()
		sale.CashReceived = nullDecimalPtr(cashReceived)
		sale.Change = nullDecimalPtr(change)
		sale.Items = []domain.SaleItem{}
		index[sale.ID] = len(sales)
		ids = append(ids, sale.ID)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, quantity, price, cost_price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.Quantity, &item.Price, &item.CostPrice); err != nil {
			return nil, err
		}
		if idx, ok := index[saleID]; ok {
			sales[idx].Items = append(sales[idx].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func uniqueProductIDs(items []domain.SaleItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullDecimalPtr(val decimal.NullDecimal) *decimal.Decimal {
	if !val.Valid {
		return nil
	}
	d := val.Decimal
	return &d
}
