package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/billrelay/backend/internal/errs"
	"github.com/billrelay/backend/internal/queue"
)

// Syncer is the unit of work a job executes.
type Syncer interface {
	Sync(ctx context.Context, billID, realmID string) error
}

// JobQueue is the queue surface the pool consumes. Satisfied by *queue.Queue.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	EnqueueIn(ctx context.Context, job queue.Job, delay time.Duration) error
	MoveDue(ctx context.Context, now time.Time, batch int64) error
}

// Options tunes the retry policy. Zero values fall back to defaults.
type Options struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

func (o *Options) applyDefaults() {
	if o.Concurrency == 0 {
		o.Concurrency = 4
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 180 * time.Second
	}
}

// Pool consumes sync jobs: one job per slot, retry policy keyed on the error
// taxonomy. Validation and not-found failures are permanent; transient ones
// re-enqueue with a delay until the attempt cap; unclassified errors get one
// retry and are then promoted to permanent.
type Pool struct {
	queue  JobQueue
	syncer Syncer
	opts   Options
}

func NewPool(q JobQueue, syncer Syncer, opts Options) *Pool {
	opts.applyDefaults()
	return &Pool{queue: q, syncer: syncer, opts: opts}
}

// Run blocks until ctx is canceled, then drains in-flight jobs.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.promoteDelayed(ctx)
	}()

	for i := 0; i < p.opts.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.consume(ctx, slot)
		}(i)
	}

	wg.Wait()
	log.Println("[WORKER] Pool stopped")
}

func (p *Pool) consume(ctx context.Context, slot int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[WORKER] slot=%d dequeue error: %v", slot, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		p.Process(ctx, job)
	}
}

// Process runs one attempt and applies the retry policy.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	err := p.syncer.Sync(ctx, job.BillID, job.RealmID)
	if err == nil {
		log.Printf("[WORKER] job=%s bill=%s attempt=%d succeeded", job.ID, job.BillID, job.Attempt)
		return
	}

	switch kind := errs.KindOf(err); {
	case kind == errs.KindTransient:
		p.maybeRetry(ctx, job, err, p.opts.MaxAttempts)
	case kind == "":
		// Unclassified: favor availability but stay bounded.
		p.maybeRetry(ctx, job, err, 2)
	default:
		log.Printf("[WORKER] job=%s bill=%s attempt=%d failed permanently (%s): %v",
			job.ID, job.BillID, job.Attempt, kind, err)
	}
}

func (p *Pool) maybeRetry(ctx context.Context, job *queue.Job, cause error, limit int) {
	if limit > p.opts.MaxAttempts {
		limit = p.opts.MaxAttempts
	}
	if job.Attempt >= limit {
		log.Printf("[WORKER] job=%s bill=%s exhausted %d attempts: %v", job.ID, job.BillID, job.Attempt, cause)
		return
	}

	retry := *job
	retry.Attempt++
	if err := p.queue.EnqueueIn(ctx, retry, p.opts.RetryDelay); err != nil {
		log.Printf("[WORKER] job=%s failed to re-enqueue: %v", job.ID, err)
		return
	}
	log.Printf("[WORKER] job=%s bill=%s attempt=%d failed, retrying in %s: %v",
		job.ID, job.BillID, job.Attempt, p.opts.RetryDelay, cause)
}

// promoteDelayed periodically moves due retries onto the ready list.
func (p *Pool) promoteDelayed(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := p.queue.MoveDue(ctx, now, 200); err != nil {
				log.Printf("[WORKER] promote delayed jobs: %v", err)
			}
		}
	}
}
