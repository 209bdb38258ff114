// Package reconcile holds the pure cash-drawer arithmetic: sale totals,
// expected balance, variance and gross profit. Nothing here touches storage.
package reconcile

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/josearceinfo-star/sermagri/internal/domain"
)

// DefaultTaxRate is the Chilean IVA.
var DefaultTaxRate = decimal.RequireFromString("0.19")

// SaleTotals returns subtotal, tax and total at full precision.
func SaleTotals(items []domain.SaleItem, taxRate decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	tax := subtotal.Mul(taxRate)
	return subtotal, tax, subtotal.Add(tax)
}

// Display rounds a money value to whole currency units.
func Display(v decimal.Decimal) decimal.Decimal {
	return v.Round(0)
}

// GrossProfit is the sum of (price - cost) * quantity over the sale items.
func GrossProfit(sale domain.Sale) decimal.Decimal {
	profit := decimal.Zero
	for _, item := range sale.Items {
		margin := item.Price.Sub(item.CostPrice)
		profit = profit.Add(margin.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return profit
}

// ExpectedBalance is opening + sales + income - expense. Entries that belong
// to another session are ignored.
func ExpectedBalance(session domain.Session, sales []domain.Sale, transactions []domain.CashTransaction) decimal.Decimal {
	expected := session.OpeningBalance
	for _, sale := range sales {
		if sale.SessionID != session.ID {
			continue
		}
		expected = expected.Add(sale.Total)
	}
	for _, entry := range transactions {
		if entry.SessionID != session.ID {
			continue
		}
		switch entry.Type {
		case domain.TransactionIncome:
			expected = expected.Add(entry.Amount)
		case domain.TransactionExpense:
			expected = expected.Sub(entry.Amount)
		}
	}
	return expected
}

// Variance is counted - closing. It is only defined once both are recorded.
func Variance(session domain.Session) (decimal.Decimal, bool) {
	if session.CountedBalance == nil || session.ClosingBalance == nil {
		return decimal.Zero, false
	}
	return session.CountedBalance.Sub(*session.ClosingBalance), true
}

// Classify labels a variance after rounding to whole units.
func Classify(variance decimal.Decimal) string {
	switch Display(variance).Sign() {
	case 1:
		return domain.VarianceSurplus
	case -1:
		return domain.VarianceShortage
	default:
		return domain.VarianceBalanced
	}
}

// Summarize builds the reporting view of a session.
func Summarize(session domain.Session, sales []domain.Sale, transactions []domain.CashTransaction) domain.SessionSummary {
	summary := domain.SessionSummary{
		SessionID:      session.ID,
		Open:           session.IsOpen(),
		StartDate:      session.StartDate,
		EndDate:        session.EndDate,
		OpeningBalance: session.OpeningBalance,
		TotalSales:     decimal.Zero,
		TotalIncome:    decimal.Zero,
		TotalExpense:   decimal.Zero,
		GrossProfit:    decimal.Zero,
		ByPayment:      []domain.PaymentTotal{},
		ClosingBalance: session.ClosingBalance,
		CountedBalance: session.CountedBalance,
	}

	byPayment := map[string]*domain.PaymentTotal{}
	for _, sale := range sales {
		if sale.SessionID != session.ID {
			continue
		}
		summary.SaleCount++
		summary.TotalSales = summary.TotalSales.Add(sale.Total)
		summary.GrossProfit = summary.GrossProfit.Add(GrossProfit(sale))

		method := sale.PaymentMethod
		if method == "" {
			method = domain.PaymentCash
		}
		bucket, ok := byPayment[method]
		if !ok {
			bucket = &domain.PaymentTotal{PaymentMethod: method, Total: decimal.Zero}
			byPayment[method] = bucket
		}
		bucket.Sales++
		bucket.Total = bucket.Total.Add(sale.Total)
	}
	for _, bucket := range byPayment {
		summary.ByPayment = append(summary.ByPayment, *bucket)
	}
	slices.SortFunc(summary.ByPayment, func(a, b domain.PaymentTotal) int {
		return cmp.Compare(a.PaymentMethod, b.PaymentMethod)
	})

	for _, entry := range transactions {
		if entry.SessionID != session.ID {
			continue
		}
		switch entry.Type {
		case domain.TransactionIncome:
			summary.TotalIncome = summary.TotalIncome.Add(entry.Amount)
		case domain.TransactionExpense:
			summary.TotalExpense = summary.TotalExpense.Add(entry.Amount)
		}
	}

	summary.ExpectedBalance = ExpectedBalance(session, sales, transactions)
	if variance, ok := Variance(session); ok {
		summary.Variance = &variance
		summary.VarianceStatus = Classify(variance)
	}
	return summary
}
