// Package worker runs background jobs: queued email resends and scheduled maintenance.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/queue"
)

// JobQueue is the Redis job queue. *queue.Queue implements it.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Resender delivers a logged email again. *mailer.Service implements it.
type Resender interface {
	Resend(ctx context.Context, logID uuid.UUID) error
}

// errDrop marks a job that must not be retried.
var errDrop = errors.New("job dropped")

// EmailProcessor processes email resend jobs.
type EmailProcessor struct {
	mail    Resender
	queue   JobQueue
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email resend processor.
func NewEmailProcessor(mail Resender, q JobQueue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{mail: mail, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one job. Unknown types, bad payloads and deleted log rows return
// an error wrapping errDrop.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmailResend {
		return fmt.Errorf("%w: unknown job type %s", errDrop, job.Type)
	}
	var payload queue.EmailResendPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", errDrop, err)
	}
	if err := p.mail.Resend(ctx, payload.EmailLogID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: email log %s not found", errDrop, payload.EmailLogID)
		}
		return err
	}
	p.logger.Info("email resent",
		zap.String("email_log_id", payload.EmailLogID.String()),
		zap.String("requested_by", payload.RequestedBy),
		zap.Int("attempt", job.Attempt))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}

func (p *EmailProcessor) handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	switch {
	case err == nil:
	case errors.Is(err, errDrop):
		p.logger.Warn("job dropped", zap.String("job_id", job.ID), zap.Error(err))
	default:
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
		if reErr := p.queue.Retry(ctx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		p.sleep(ctx)
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
