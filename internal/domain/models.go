package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Stock     int             `json:"stock"`
}

type ProductUpsertRequest struct {
	Name      string          `json:"name" validate:"required"`
	Category  string          `json:"category" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Stock     int             `json:"stock" validate:"gte=0"`
}

type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	RUT     string `json:"rut"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type CompanyInfo struct {
	Name    string `json:"name"`
	RUT     string `json:"rut"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

// Session is a cash-register session. It is open while EndDate is nil and
// becomes immutable once closed.
type Session struct {
	ID             string           `json:"id"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        *time.Time       `json:"end_date"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance *decimal.Decimal `json:"closing_balance"`
	CountedBalance *decimal.Decimal `json:"counted_balance"`
	OpenedBy       string           `json:"opened_by,omitempty"`
}

func (s Session) IsOpen() bool {
	return s.EndDate == nil
}

type SessionOpenRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type SessionCloseRequest struct {
	CountedBalance decimal.Decimal `json:"counted_balance"`
}

type SessionResponse struct {
	Session  Session `json:"session"`
	NextView string  `json:"next_view,omitempty"`
}

type SessionCloseResponse struct {
	Session  Session        `json:"session"`
	Summary  SessionSummary `json:"summary"`
	NextView string         `json:"next_view,omitempty"`
}

type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

type CashTransaction struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	Date      time.Time       `json:"date"`
}

type CashTransactionRequest struct {
	Type   TransactionType `json:"type" validate:"required,oneof=income expense"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required"`
}

type CashTransactionListResponse struct {
	Transactions []CashTransaction `json:"transactions"`
}

const (
	PaymentCash   = "efectivo"
	PaymentDebit  = "debito"
	PaymentCredit = "credito"
)

// SaleItem freezes price and cost at the moment the sale was committed.
type SaleItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

type Sale struct {
	ID            string           `json:"id"`
	Date          time.Time        `json:"date"`
	Items         []SaleItem       `json:"items"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	TaxRate       decimal.Decimal  `json:"tax_rate"`
	Tax           decimal.Decimal  `json:"tax"`
	Total         decimal.Decimal  `json:"total"`
	SessionID     string           `json:"session_id"`
	ClientID      string           `json:"client_id,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	CashReceived  *decimal.Decimal `json:"cash_received,omitempty"`
	Change        *decimal.Decimal `json:"change,omitempty"`
}

type SaleLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type SaleRequest struct {
	Items         []SaleLine       `json:"items" validate:"dive"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,oneof=efectivo debito credito"`
	ClientID      string           `json:"client_id,omitempty"`
	CashReceived  *decimal.Decimal `json:"cash_received,omitempty"`
}

type CheckoutRequest struct {
	PaymentMethod string           `json:"payment_method" validate:"omitempty,oneof=efectivo debito credito"`
	ClientID      string           `json:"client_id,omitempty"`
	CashReceived  *decimal.Decimal `json:"cash_received,omitempty"`
}

type SaleResponse struct {
	Sale           Sale            `json:"sale"`
	TotalDisplay   decimal.Decimal `json:"total_display"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	ReceiptPreview string          `json:"receipt_preview,omitempty"`
}

type SaleFilter struct {
	SessionID string
	Limit     int
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type PaymentTotal struct {
	PaymentMethod string          `json:"payment_method"`
	Sales         int             `json:"sales"`
	Total         decimal.Decimal `json:"total"`
}

const (
	VarianceBalanced = "balanced"
	VarianceSurplus  = "surplus"
	VarianceShortage = "shortage"
)

type SessionSummary struct {
	SessionID       string           `json:"session_id"`
	Open            bool             `json:"open"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         *time.Time       `json:"end_date,omitempty"`
	OpeningBalance  decimal.Decimal  `json:"opening_balance"`
	SaleCount       int              `json:"sale_count"`
	TotalSales      decimal.Decimal  `json:"total_sales"`
	TotalIncome     decimal.Decimal  `json:"total_income"`
	TotalExpense    decimal.Decimal  `json:"total_expense"`
	ExpectedBalance decimal.Decimal  `json:"expected_balance"`
	GrossProfit     decimal.Decimal  `json:"gross_profit"`
	ByPayment       []PaymentTotal   `json:"by_payment"`
	ClosingBalance  *decimal.Decimal `json:"closing_balance,omitempty"`
	CountedBalance  *decimal.Decimal `json:"counted_balance,omitempty"`
	Variance        *decimal.Decimal `json:"variance,omitempty"`
	VarianceStatus  string           `json:"variance_status,omitempty"`
}

const (
	ViewPOS          = "pos"
	ViewCashRegister = "cash_register"
)

const (
	EventSessionOpened = "session.opened"
	EventSessionClosed = "session.closed"
	EventSaleCreated   = "sale.created"
)

// SessionEvent is published after a session lifecycle change or a sale so
// that a front end can react (for example, move to the sales-entry view).
type SessionEvent struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	SaleID    string           `json:"sale_id,omitempty"`
	NextView  string           `json:"next_view,omitempty"`
	Variance  *decimal.Decimal `json:"variance,omitempty"`
	At        time.Time        `json:"at"`
}

// StateDocument is the flat, whole-state form used by file persistence.
type StateDocument struct {
	Products         []Product         `json:"products"`
	Clients          []Client          `json:"clients"`
	Sessions         []Session         `json:"sessions"`
	Sales            []Sale            `json:"sales"`
	CashTransactions []CashTransaction `json:"cash_transactions"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartResponse struct {
	Lines    []CartLine      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}
