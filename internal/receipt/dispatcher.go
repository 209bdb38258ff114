package receipt

import (
	"context"

	"go.uber.org/zap"
)

//go:generate mockgen -source=dispatcher.go -destination=dispatcher_mock.go -package=receipt

// Dispatcher hands a ticket to whatever prints it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ticket Ticket) error
}

// LogDispatcher writes the rendered ticket to the log.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, ticket Ticket) error {
	d.logger.Info("receipt",
		zap.String("sale_id", ticket.SaleID),
		zap.String("session_id", ticket.SessionID),
		zap.String("total", Money(ticket.Total)),
		zap.String("ticket", Render(ticket)),
	)
	return nil
}
