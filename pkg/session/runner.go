package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minithermal/print-engine/pkg/transport"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// HandleOpener opens a fresh link for one attempt. The engine closes
// whatever it returns.
type HandleOpener func() (transport.Handle, error)

// Job is one queued print request and its outcome.
type Job struct {
	ID        string
	Request   Request
	Status    JobStatus
	Attempts  int
	Result    Result
	CreatedAt time.Time
}

// Runner feeds queued jobs one at a time through an engine. Devices in
// this class cannot interleave jobs, so a single worker serializes
// everything submitted here. Send failures are retried with a fresh
// link; resolution and encoding failures are deterministic and fail the
// job immediately.
type Runner struct {
	engine     *Engine
	open       HandleOpener
	maxRetries int

	jobs []*Job
	mu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner starts a runner. maxRetries bounds send attempts per job;
// zero means a single attempt.
func NewRunner(engine *Engine, open HandleOpener, maxRetries int) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		engine:     engine,
		open:       open,
		maxRetries: maxRetries,
		ctx:        ctx,
		cancel:     cancel,
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Submit queues a job and returns its id.
func (r *Runner) Submit(req Request) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    JobQueued,
		CreatedAt: time.Now(),
	}
	r.jobs = append(r.jobs, job)

	return job.ID
}

func (r *Runner) worker() {
	defer r.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.processNext()
		}
	}
}

func (r *Runner) processNext() {
	r.mu.Lock()
	var job *Job
	for _, j := range r.jobs {
		if j.Status == JobQueued {
			job = j
			job.Status = JobPrinting
			break
		}
	}
	r.mu.Unlock()

	if job == nil {
		return
	}

	result := r.runAttempt(job.Request)

	r.mu.Lock()
	job.Attempts++
	job.Result = result

	switch {
	case result.Success:
		job.Status = JobCompleted
		r.engine.logger.Infof("job %s completed, %d bytes", job.ID, result.BytesSent)
	case result.FailedStage == StageSend && job.Attempts <= r.maxRetries:
		job.Status = JobQueued
		r.engine.logger.Warnf("job %s send failed, retrying (%d/%d): %v",
			job.ID, job.Attempts, r.maxRetries, result.Err)
	default:
		job.Status = JobFailed
		r.engine.logger.Errorf("job %s failed at %s: %v", job.ID, result.FailedStage, result.Err)
	}
	r.mu.Unlock()
}

func (r *Runner) runAttempt(req Request) Result {
	handle, err := r.open()
	if err != nil {
		return Result{FailedStage: StageSend, Err: err}
	}
	return r.engine.PrintOnce(r.ctx, handle, req)
}

// Job returns a copy of the job with the given id.
func (r *Runner) Job(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.ID == id {
			return *job, true
		}
	}
	return Job{}, false
}

// Jobs returns copies of every tracked job, oldest first.
func (r *Runner) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]Job, len(r.jobs))
	for i, job := range r.jobs {
		jobs[i] = *job
	}
	return jobs
}

// ClearFinished drops completed and failed jobs from the list.
func (r *Runner) ClearFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.jobs[:0]
	for _, job := range r.jobs {
		if job.Status != JobCompleted && job.Status != JobFailed {
			kept = append(kept, job)
		}
	}
	r.jobs = kept
}

// Stop cancels the worker and waits for an in-flight job to settle.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}
