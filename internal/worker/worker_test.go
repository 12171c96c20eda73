package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/queue"
)

type fakeResender struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeResender) Resend(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.err
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	done    chan struct{}
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		select {
		case <-q.done:
		default:
			close(q.done)
		}
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) Retry(ctx context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func resendJob(t *testing.T, id uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeEmailResend, queue.EmailResendPayload{EmailLogID: id, RequestedBy: "admin@x.io"})
	require.NoError(t, err)
	return job
}

func TestProcessResends(t *testing.T) {
	mail := &fakeResender{}
	p := NewEmailProcessor(mail, &fakeQueue{}, nil)
	id := uuid.New()
	require.NoError(t, p.Process(context.Background(), resendJob(t, id)))
	assert.Equal(t, []uuid.UUID{id}, mail.calls)
}

func TestProcessDropsUnusableJobs(t *testing.T) {
	p := NewEmailProcessor(&fakeResender{err: fmt.Errorf("load email log: %w", database.ErrNotFound)}, &fakeQueue{}, nil)
	err := p.Process(context.Background(), resendJob(t, uuid.New()))
	assert.ErrorIs(t, err, errDrop)

	err = p.Process(context.Background(), &queue.Job{Type: "recording_upload"})
	assert.ErrorIs(t, err, errDrop)

	err = p.Process(context.Background(), &queue.Job{Type: queue.JobTypeEmailResend, Payload: []byte("{")})
	assert.ErrorIs(t, err, errDrop)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	mail := &fakeResender{err: errors.New("smtp 421")}
	q := &fakeQueue{done: make(chan struct{})}
	q.jobs = []*queue.Job{resendJob(t, uuid.New()), {ID: "bad", Type: "unknown"}}
	p := NewEmailProcessor(mail, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()
	select {
	case <-q.done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue was not drained")
	}
	cancel()
	<-stopped

	require.Len(t, q.retried, 1, "only the transient failure is retried")
	assert.Equal(t, 1, q.retried[0].Attempt)
}

type fakeMarker struct{ at time.Time }

func (f *fakeMarker) MarkPast(ctx context.Context, now time.Time) (int64, error) {
	f.at = now
	return 2, nil
}

type fakePurger struct{ cutoff time.Time }

func (f *fakePurger) PurgeExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 5, nil
}

func TestSchedulerJobs(t *testing.T) {
	marker, purger := &fakeMarker{}, &fakePurger{}
	s, err := NewScheduler(marker, purger, Schedules{MarkPastEvents: "*/15 * * * *", PurgeTokens: "30 3 * * *"}, nil)
	require.NoError(t, err)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.MarkPastEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, now, marker.at)

	n, err = s.PurgeTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, now.Add(-TokenRetention), purger.cutoff)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(&fakeMarker{}, &fakePurger{}, Schedules{MarkPastEvents: "every minute", PurgeTokens: "@daily"}, nil)
	assert.Error(t, err)
}
