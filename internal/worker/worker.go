package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/invitebot/backend/internal/events"
	"github.com/invitebot/backend/pkg/queue"
)

// AuditProcessor consumes registration jobs and persists the audit trail.
type AuditProcessor struct {
	events *events.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewAuditProcessor creates a registration audit processor.
func NewAuditProcessor(events *events.Repository, q *queue.Queue, logger *zap.Logger) *AuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditProcessor{events: events, queue: q, logger: logger}
}

// Process executes one registration audit job.
func (p *AuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRegistration {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RegistrationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := p.events.Insert(ctx, payload.ParticipantID, payload.Role, payload.InvitorID, payload.OccurredAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	p.logger.Info("registration recorded",
		zap.String("participant_id", payload.ParticipantID),
		zap.String("role", payload.Role))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
