package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/crm/quotations"
	"github.com/meridian-crm/meridian-crm/internal/observability"
)

// QuotationsExpireJob marks sent quotations past their validity date as expired.
type QuotationsExpireJob struct {
	Quotations *quotations.Service
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// NewQuotationsExpireJob wires dependencies for the quotation expiry handler.
func NewQuotationsExpireJob(quotationsSvc *quotations.Service, logger *slog.Logger, metrics *observability.Metrics) *QuotationsExpireJob {
	return &QuotationsExpireJob{
		Quotations: quotationsSvc,
		Logger:     logger,
		Metrics:    metrics,
	}
}

// Handle processes TaskQuotationsExpire tasks.
func (j *QuotationsExpireJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotations == nil {
		return errors.New("quotations expire: handler not configured")
	}
	var payload QuotationsExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	expired, err := j.Quotations.ExpireOverdue(ctx)
	if err != nil {
		j.Metrics.RecordJob(TaskQuotationsExpire, "error")
		logger.Error("expire quotations", slog.Any("error", err))
		return err
	}

	j.Metrics.RecordJob(TaskQuotationsExpire, "ok")
	logger.Info("expired quotations", slog.Int64("expired", expired))
	return nil
}

func (j *QuotationsExpireJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskQuotationsExpire))
	}
	return slog.Default().With(slog.String("job", TaskQuotationsExpire))
}
