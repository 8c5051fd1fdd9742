package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypePromoExpire = "promo:expire"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// DefaultExpiryCron runs the sweep every 15 minutes.
const DefaultExpiryCron = "*/15 * * * *"

type PromoExpirePayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// NewPromoExpireTask builds the sweep task. It is never retried; the next scheduled run covers a failure.
func NewPromoExpireTask(source string) (*asynq.Task, error) {
	payload, err := json.Marshal(PromoExpirePayload{RequestedAt: time.Now().UTC(), Source: source})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypePromoExpire, payload, asynq.Queue(QueueLow), asynq.MaxRetry(0)), nil
}

// Queues returns the queue priorities served by the worker.
func Queues() map[string]int {
	return map[string]int{
		QueueDefault: 3,
		QueueLow:     1,
	}
}
