package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/josearceinfo-star/sermagri/internal/domain"
	"github.com/josearceinfo-star/sermagri/internal/reconcile"
)

func testSale() domain.Sale {
	items := []domain.SaleItem{
		{ProductID: "PROD-001", Quantity: 2, Price: decimal.NewFromInt(15000), CostPrice: decimal.NewFromInt(9500)},
		{ProductID: "PROD-GONE", Quantity: 1, Price: decimal.NewFromInt(8000), CostPrice: decimal.NewFromInt(4500)},
	}
	subtotal, tax, total := reconcile.SaleTotals(items, reconcile.DefaultTaxRate)
	received := decimal.NewFromInt(50000)
	change := received.Sub(total)
	return domain.Sale{
		ID:            "VTA-1",
		SessionID:     "SES-1",
		Date:          time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		Items:         items,
		Subtotal:      subtotal,
		TaxRate:       reconcile.DefaultTaxRate,
		Tax:           tax,
		Total:         total,
		PaymentMethod: domain.PaymentCash,
		CashReceived:  &received,
		Change:        &change,
	}
}

func TestMoneyGroupsThousands(t *testing.T) {
	assert.Equal(t, "$1.234.567", Money(decimal.NewFromInt(1234567)))
	assert.Equal(t, "$45.220", Money(decimal.RequireFromString("45219.6")))
}

func TestBuildMarksMissingProducts(t *testing.T) {
	client := &domain.Client{ID: "CLI-001", Name: "Agrícola Los Robles", RUT: "76.123.456-7"}
	ticket := Build(testSale(), map[string]string{"PROD-001": "Fertilizante Nitro Full"}, client,
		domain.CompanyInfo{Name: "Sermagri", RUT: "77.000.000-1"})

	require.Len(t, ticket.Lines, 2)
	assert.Equal(t, "Fertilizante Nitro Full", ticket.Lines[0].Name)
	assert.True(t, ticket.Lines[0].LineTotal.Equal(decimal.NewFromInt(30000)))
	assert.Equal(t, missingProduct, ticket.Lines[1].Name)

	text := Render(ticket)
	assert.Contains(t, text, "Sermagri")
	assert.Contains(t, text, "Cliente: Agrícola Los Robles")
	assert.Contains(t, text, "2 x Fertilizante Nitro Full")
	assert.Contains(t, text, "Subtotal: $38.000")
	assert.Contains(t, text, "IVA (19%)")
	assert.Contains(t, text, "Total: $45.220")
	assert.Contains(t, text, "Vuelto:")
}

func TestPrintTaskRoundTrip(t *testing.T) {
	ticket := Build(testSale(), nil, nil, domain.CompanyInfo{Name: "Sermagri"})

	task, err := NewPrintTask(ticket)
	require.NoError(t, err)
	assert.Equal(t, TaskTypePrint, task.Type())

	ctrl := gomock.NewController(t)
	next := NewMockDispatcher(ctrl)
	next.EXPECT().
		Dispatch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got Ticket) error {
			assert.Equal(t, "VTA-1", got.SaleID)
			assert.True(t, got.Total.Equal(ticket.Total))
			return nil
		})

	handler := NewPrintHandler(next, nil)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
}

func TestPrintHandlerSkipsRetryOnBadPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := NewMockDispatcher(ctrl)
	handler := NewPrintHandler(next, nil)

	err := handler(context.Background(), asynq.NewTask(TaskTypePrint, []byte("{not json")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	empty, _ := json.Marshal(Ticket{})
	err = handler(context.Background(), asynq.NewTask(TaskTypePrint, empty))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestPrintHandlerPropagatesDispatchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := NewMockDispatcher(ctrl)
	next.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(errors.New("printer offline"))

	task, err := NewPrintTask(Ticket{SaleID: "VTA-2"})
	require.NoError(t, err)
	assert.EqualError(t, NewPrintHandler(next, nil)(context.Background(), task), "printer offline")
}

func TestLogDispatcher(t *testing.T) {
	require.NoError(t, NewLogDispatcher(nil).Dispatch(context.Background(), Ticket{SaleID: "VTA-3"}))
}
