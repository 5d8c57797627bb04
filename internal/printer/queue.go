package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusPrinting  = "printing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PrintJob represents one encoded document headed to a printer.
type PrintJob struct {
	ID          string
	PrinterID   string
	Data        []byte
	Status      string // queued, printing, completed, failed
	Error       error
	CreatedAt   time.Time
	CompletedAt time.Time
}

// PrintQueue serializes print jobs. It holds at most one pending job;
// enqueueing while a job is queued or printing is rejected with
// ErrBusy. Failed jobs are not retried: the device state after a
// failed transfer is unknown, so a blind resend could cut a half-fed
// receipt. The operator re-submits instead.
type PrintQueue struct {
	mu      sync.Mutex
	pending *PrintJob
	history []*PrintJob
	manager *Manager

	onDone func(*PrintJob)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPrintQueue creates the queue and starts its worker.
func NewPrintQueue(manager *Manager) *PrintQueue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &PrintQueue{
		manager: manager,
		ctx:     ctx,
		cancel:  cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// OnJobDone sets a callback fired after a job completes or fails.
func (q *PrintQueue) OnJobDone(callback func(*PrintJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDone = callback
}

// Enqueue submits one encoded document for the given printer. Returns
// the job ID, or ErrBusy while a previous job is still in flight.
func (q *PrintQueue) Enqueue(printerID string, data []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending != nil {
		return "", fmt.Errorf("%w: job %s is still %s", ErrBusy, q.pending.ID, q.pending.Status)
	}

	job := &PrintJob{
		ID:        uuid.NewString(),
		PrinterID: printerID,
		Data:      data,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	q.pending = job

	return job.ID, nil
}

// worker drains the pending slot.
func (q *PrintQueue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processPending()
		}
	}
}

func (q *PrintQueue) processPending() {
	q.mu.Lock()
	job := q.pending
	if job == nil || job.Status != StatusQueued {
		q.mu.Unlock()
		return
	}
	job.Status = StatusPrinting
	q.mu.Unlock()

	err := q.printJob(job)

	q.mu.Lock()
	job.CompletedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err
		fmt.Printf("❌ Print job %s failed: %v\n", job.ID, err)
	} else {
		job.Status = StatusCompleted
		fmt.Printf("✅ Print job %s completed\n", job.ID)
	}
	q.history = append(q.history, job)
	q.pending = nil
	callback := q.onDone
	q.mu.Unlock()

	if callback != nil {
		callback(job)
	}
}

func (q *PrintQueue) printJob(job *PrintJob) error {
	// Connect on demand when the target printer has no session yet.
	if q.manager.ConnectedPrinterID() != job.PrinterID {
		if _, err := q.manager.Connect(q.ctx, job.PrinterID); err != nil {
			return fmt.Errorf("failed to connect to printer: %w", err)
		}
	}

	return q.manager.Send(q.ctx, job.Data)
}

// GetJob returns a copy of a job by ID, pending or historical.
func (q *PrintQueue) GetJob(jobID string) *PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending != nil && q.pending.ID == jobID {
		jobCopy := *q.pending
		return &jobCopy
	}
	for _, job := range q.history {
		if job.ID == jobID {
			jobCopy := *job
			return &jobCopy
		}
	}
	return nil
}

// GetAllJobs returns copies of the pending job plus history.
func (q *PrintQueue) GetAllJobs() []*PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*PrintJob, 0, len(q.history)+1)
	for _, job := range q.history {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	if q.pending != nil {
		jobCopy := *q.pending
		jobs = append(jobs, &jobCopy)
	}
	return jobs
}

// ClearCompleted drops completed jobs from the history.
func (q *PrintQueue) ClearCompleted() {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*PrintJob, 0, len(q.history))
	for _, job := range q.history {
		if job.Status != StatusCompleted {
			filtered = append(filtered, job)
		}
	}
	q.history = filtered
}

// Stop stops the queue worker.
func (q *PrintQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}
