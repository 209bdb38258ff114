// Package receipt turns a committed sale into a ticket and hands it to a
// print collaborator. The cash-register core never formats for a printer.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
)

const missingProduct = "N/A"

var printer = message.NewPrinter(language.MustParse("es-CL"))

type Line struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Ticket is everything a printer needs, denormalized so it survives a
// queue hop without store access.
type Ticket struct {
	SaleID        string             `json:"sale_id"`
	SessionID     string             `json:"session_id"`
	Date          time.Time          `json:"date"`
	Company       domain.CompanyInfo `json:"company"`
	Client        *domain.Client     `json:"client,omitempty"`
	Lines         []Line             `json:"lines"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	TaxRate       decimal.Decimal    `json:"tax_rate"`
	Tax           decimal.Decimal    `json:"tax"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	CashReceived  *decimal.Decimal   `json:"cash_received,omitempty"`
	Change        *decimal.Decimal   `json:"change,omitempty"`
}

// Build denormalizes a sale. Products missing from names print as N/A.
func Build(sale domain.Sale, names map[string]string, client *domain.Client, company domain.CompanyInfo) Ticket {
	lines := make([]Line, 0, len(sale.Items))
	for _, item := range sale.Items {
		name, ok := names[item.ProductID]
		if !ok || name == "" {
			name = missingProduct
		}
		lines = append(lines, Line{
			Name:      name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return Ticket{
		SaleID:        sale.ID,
		SessionID:     sale.SessionID,
		Date:          sale.Date,
		Company:       company,
		Client:        client,
		Lines:         lines,
		Subtotal:      sale.Subtotal,
		TaxRate:       sale.TaxRate,
		Tax:           sale.Tax,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		CashReceived:  sale.CashReceived,
		Change:        sale.Change,
	}
}

// Money formats a value as whole pesos with es-CL grouping.
func Money(v decimal.Decimal) string {
	return printer.Sprintf("$%d", reconcile.Display(v).IntPart())
}

// Render produces a plain-text preview of the ticket.
func Render(t Ticket) string {
	var b strings.Builder
	if t.Company.Name != "" {
		fmt.Fprintln(&b, t.Company.Name)
	}
	if t.Company.RUT != "" {
		fmt.Fprintf(&b, "RUT: %s\n", t.Company.RUT)
	}
	if t.Company.Address != "" {
		fmt.Fprintln(&b, t.Company.Address)
	}
	fmt.Fprintf(&b, "Venta: %s\n", t.SaleID)
	fmt.Fprintf(&b, "Fecha: %s\n", t.Date.Format("02-01-2006 15:04"))
	if t.Client != nil {
		fmt.Fprintf(&b, "Cliente: %s (%s)\n", t.Client.Name, t.Client.RUT)
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")
	for _, line := range t.Lines {
		fmt.Fprintf(&b, "%d x %s\n", line.Quantity, line.Name)
		fmt.Fprintf(&b, "    %s  %s\n", Money(line.Price), Money(line.LineTotal))
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", Money(t.Subtotal))
	fmt.Fprintf(&b, "IVA (%s%%): %s\n", t.TaxRate.Shift(2).String(), Money(t.Tax))
	fmt.Fprintf(&b, "Total: %s\n", Money(t.Total))
	fmt.Fprintf(&b, "Pago: %s\n", t.PaymentMethod)
	if t.CashReceived != nil {
		fmt.Fprintf(&b, "Recibido: %s\n", Money(*t.CashReceived))
	}
	if t.Change != nil {
		fmt.Fprintf(&b, "Vuelto: %s\n", Money(*t.Change))
	}
	if t.Company.Website != "" {
		fmt.Fprintln(&b, t.Company.Website)
	}
	return b.String()
}
