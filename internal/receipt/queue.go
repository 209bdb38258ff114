package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskTypePrint carries one ticket to the print worker.
	TaskTypePrint = "receipt:print"
	Queue         = "receipts"
)

func NewPrintTask(ticket Ticket) (*asynq.Task, error) {
	body, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePrint, body,
		asynq.Queue(Queue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// QueueDispatcher enqueues tickets for the worker process.
type QueueDispatcher struct {
	client *asynq.Client
}

func NewQueueDispatcher(opt asynq.RedisClientOpt) *QueueDispatcher {
	return &QueueDispatcher{client: asynq.NewClient(opt)}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, ticket Ticket) error {
	task, err := NewPrintTask(ticket)
	if err != nil {
		return fmt.Errorf("build print task: %w", err)
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue print task: %w", err)
	}
	return nil
}

func (d *QueueDispatcher) Close() error {
	return d.client.Close()
}

// NewPrintHandler decodes print tasks and forwards them to next. Malformed
// payloads are not retried.
func NewPrintHandler(next Dispatcher, logger *zap.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, task *asynq.Task) error {
		var ticket Ticket
		if err := json.Unmarshal(task.Payload(), &ticket); err != nil {
			logger.Error("decode print task", zap.Error(err))
			return fmt.Errorf("decode print task: %v: %w", err, asynq.SkipRetry)
		}
		if ticket.SaleID == "" {
			return fmt.Errorf("print task without sale id: %w", asynq.SkipRetry)
		}
		return next.Dispatch(ctx, ticket)
	}
}
