package store

import (
	"fmt"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
)

// SettlePayment defaults the payment method and derives change for cash
// sales. Cash received is compared against the displayed whole-unit total.
// Card sales never carry cash fields.
func SettlePayment(sale *domain.Sale) error {
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = domain.PaymentCash
	}
	switch sale.PaymentMethod {
	case domain.PaymentCash:
	case domain.PaymentDebit, domain.PaymentCredit:
		sale.CashReceived = nil
		sale.Change = nil
		return nil
	default:
		return fmt.Errorf("payment method %q: %w", sale.PaymentMethod, ErrInvalidInput)
	}
	if sale.CashReceived == nil {
		sale.Change = nil
		return nil
	}
	due := reconcile.Display(sale.Total)
	if sale.CashReceived.LessThan(due) {
		return fmt.Errorf("cash received %s below total %s: %w", sale.CashReceived, due, ErrInvalidAmount)
	}
	change := sale.CashReceived.Sub(due)
	sale.Change = &change
	return nil
}
