package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/observability"
)

// SessionsPruneJob deletes login sessions whose expiry has passed.
type SessionsPruneJob struct {
	Auth    *auth.Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewSessionsPruneJob wires dependencies for the session cleanup handler.
func NewSessionsPruneJob(authSvc *auth.Service, logger *slog.Logger, metrics *observability.Metrics) *SessionsPruneJob {
	return &SessionsPruneJob{
		Auth:    authSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskSessionsPrune tasks.
func (j *SessionsPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Auth == nil {
		return errors.New("sessions prune: handler not configured")
	}
	var payload SessionsPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	pruned, err := j.Auth.PruneSessions(ctx, j.now())
	if err != nil {
		j.Metrics.RecordJob(TaskSessionsPrune, "error")
		logger.Error("prune sessions", slog.Any("error", err))
		return err
	}

	j.Metrics.RecordJob(TaskSessionsPrune, "ok")
	logger.Info("pruned sessions", slog.Int64("removed", pruned))
	return nil
}

func (j *SessionsPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSessionsPrune))
	}
	return slog.Default().With(slog.String("job", TaskSessionsPrune))
}

func (j *SessionsPruneJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
