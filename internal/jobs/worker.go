package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
)

type WorkerPool struct {
	repo         *Repository
	handlers     map[string]Handler
	logger       *slog.Logger
	metrics      *metrics.Metrics
	workerCount  int
	maxAttempts  int
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: 500 * time.Millisecond,
		stop:         make(chan struct{}),
	}
}

// WithMetrics records job outcomes on m.
func (p *WorkerPool) WithMetrics(m *metrics.Metrics) *WorkerPool {
	p.metrics = m
	return p
}

// WithMaxAttempts sets the attempt limit for jobs enqueued without one.
func (p *WorkerPool) WithMaxAttempts(n int) *WorkerPool {
	p.maxAttempts = n
	return p
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Run starts the pool and blocks until ctx is done, then waits for the
// workers to finish their current job.
func (p *WorkerPool) Run(ctx context.Context) error {
	p.Start(ctx)
	<-ctx.Done()
	p.Stop()
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch job", "err", err)
			}
			p.wait(ctx, time.Second)
			continue
		}
		if job == nil {
			p.wait(ctx, p.pollInterval)
			continue
		}
		p.process(ctx, job)
	}
}

// wait sleeps for d unless the pool is stopped first.
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

func (p *WorkerPool) process(ctx context.Context, job *Job) {
	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			p.logger.Error("move to dead letter", "err", err)
		}
		p.metrics.IncJob(job.Type, "no_handler")
		return
	}

	err := h(ctx, job)
	if err == nil {
		job.Status = StatusDone
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			p.logger.Error("mark job done", "err", upErr)
		}
		p.metrics.IncJob(job.Type, "done")
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			p.logger.Error("move to dead letter", "err", mvErr)
		}
		p.logger.Warn("job failed permanently", "id", job.ID, "type", job.Type, "err", ErrMaxAttempts)
		p.metrics.IncJob(job.Type, "dead_letter")
		return
	}

	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		p.logger.Error("update job for retry", "err", upErr)
	}
	p.metrics.IncJob(job.Type, "retry")
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	if maxAttempts <= 0 {
		maxAttempts = p.maxAttempts
	}
	j := &Job{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return p.repo.Enqueue(ctx, j)
}
