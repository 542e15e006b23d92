package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"servly/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeNotifyDispatch = "notify:dispatch"

// Notifier decides-to-deliver: the dispatch engine calls it with a recipient
// and a template kind, delivery happens elsewhere. At-least-once; duplicate
// notifications are tolerable.
type Notifier interface {
	Notify(ctx context.Context, recipientType, recipientID, templateKind string, data map[string]string) error
}

// AsynqNotifier enqueues notification tasks on the Redis-backed dispatch
// queue. The worker in cron/ drains it with retry and backoff, so a delivery
// failure never reaches (let alone rolls back) the state transition that
// produced the event.
type AsynqNotifier struct {
	Client *asynq.Client
	Logger *zap.Logger
}

// NewAsynqNotifier creates a Notifier backed by an asynq client.
func NewAsynqNotifier(client *asynq.Client, logger *zap.Logger) (*AsynqNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("notifier initialization error: asynq client is nil")
	}
	return &AsynqNotifier{Client: client, Logger: logger}, nil
}

func (n *AsynqNotifier) Notify(ctx context.Context, recipientType, recipientID, templateKind string, data map[string]string) error {
	payload := models.NotificationPayload{
		RecipientType: recipientType,
		RecipientID:   recipientID,
		TemplateKind:  templateKind,
		Data:          data,
		QueuedAt:      time.Now(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Notify: failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeNotifyDispatch, raw)
	if _, err := n.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)); err != nil {
		n.Logger.Warn("Notify: enqueue failed",
			zap.String("recipientType", recipientType),
			zap.String("recipientId", recipientID),
			zap.String("templateKind", templateKind),
			zap.Error(err))
		return fmt.Errorf("Notify: failed to enqueue task: %w", err)
	}
	return nil
}
