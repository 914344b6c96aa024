package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPrune removes expired login sessions from the database.
	TaskSessionsPrune = "sessions:prune"
	// TaskQuotationsExpire flips overdue sent quotations to expired.
	TaskQuotationsExpire = "quotations:expire"
)

// SessionsPrunePayload carries scheduling metadata for session cleanup.
type SessionsPrunePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionsPruneTask constructs an Asynq task for session cleanup.
func NewSessionsPruneTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionsPrunePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPrune, body, asynq.Queue(QueueDefault)), nil
}

// QuotationsExpirePayload carries scheduling metadata for quotation expiry.
type QuotationsExpirePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewQuotationsExpireTask constructs an Asynq task for quotation expiry.
func NewQuotationsExpireTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(QuotationsExpirePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationsExpire, body, asynq.Queue(QueueDefault)), nil
}
