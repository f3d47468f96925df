package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/email"
	"github.com/rfontaine/atelier/internal/jobs"
)

type fakeQueue struct {
	mu        sync.Mutex
	pending   []*domain.Job
	completed []uuid.UUID
	failed    map[uuid.UUID]string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{failed: map[uuid.UUID]string{}}
}

func (q *fakeQueue) EnqueueJob(ctx context.Context, jobType, queue string, payload []byte) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := &domain.Job{ID: uuid.New(), JobType: jobType, Queue: queue, Payload: payload, MaxRetries: 5}
	q.pending = append(q.pending, job)
	return job, nil
}

func (q *fakeQueue) ClaimNextJob(ctx context.Context, workerID, queue string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, nil
}

func (q *fakeQueue) CompleteJob(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = errMsg
	return nil
}

func (q *fakeQueue) counts() (completed, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed), len(q.failed)
}

type stubSender struct {
	mu   sync.Mutex
	sent int
	err  error
}

func (s *stubSender) Send(ctx context.Context, e *email.Email) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent++
	return "msg", nil
}

func (s *stubSender) SendTemplate(ctx context.Context, templateID string, to []string, data map[string]interface{}) (string, error) {
	return "", errors.New("not implemented")
}

func newTestWorker(t *testing.T, queue domain.JobQueue, sender email.Sender) *Worker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := email.NewService(sender, "orders@example.com", "", logger)
	if err != nil {
		t.Fatal(err)
	}
	return NewWorker(queue, svc, Config{PollInterval: 10 * time.Millisecond}, logger)
}

func enqueueReceipt(t *testing.T, q domain.JobQueue) {
	t.Helper()
	payload, err := json.Marshal(jobs.OrderConfirmationPayload{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-20260115-AAAAAA",
		Email:       "ana@example.com",
		OrderDate:   time.Now(),
		Items:       []jobs.OrderLinePayload{{Name: "Beans", Quantity: 1, PriceCents: 1850}},
		TotalCents:  1850,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.EnqueueJob(context.Background(), jobs.JobTypeOrderConfirmation, jobs.QueueEmail, payload); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_ProcessesEmailJob(t *testing.T) {
	queue := newFakeQueue()
	sender := &stubSender{}
	w := newTestWorker(t, queue, sender)

	enqueueReceipt(t, queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		completed, _ := queue.counts()
		return completed == 1
	})
	cancel()
	<-done

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.sent != 1 {
		t.Errorf("sent = %d, want 1", sender.sent)
	}
}

func TestWorker_FailedJobIsRecorded(t *testing.T) {
	queue := newFakeQueue()
	sender := &stubSender{err: errors.New("smtp down")}
	w := newTestWorker(t, queue, sender)

	enqueueReceipt(t, queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		_, failed := queue.counts()
		return failed == 1
	})
	cancel()
	<-done
}

func TestWorker_UnknownJobType(t *testing.T) {
	queue := newFakeQueue()
	w := newTestWorker(t, queue, &stubSender{})

	if _, err := queue.EnqueueJob(context.Background(), "bogus:type", jobs.QueueEmail, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		_, failed := queue.counts()
		return failed == 1
	})
	cancel()
	<-done
}
