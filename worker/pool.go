package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/searchparam"
)

// Resolver is the interface that the pool uses to resolve targets.
// *searchparam.Indexer implements it.
type Resolver interface {
	Resolve(t searchparam.Target) searchparam.Entry
}

// Pool manages a pool of worker goroutines for parallel resolution.
// Submit must not be called concurrently with Close or CloseAndWait.
type Pool struct {
	workers    int
	jobsChan   chan Job
	resultChan chan *JobResult
	resolver   Resolver
	metrics    *searchtype.Metrics
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     atomic.Bool

	jobsSubmitted atomic.Uint64
}

// NewPool creates a new worker pool. WorkerCount applies.
func NewPool(resolver Resolver, opts ...searchtype.Option) *Pool {
	o := searchtype.DefaultOptions().Apply(opts...)
	return newPool(resolver, o.WorkerCount, searchtype.NewMetrics())
}

func newPool(resolver Resolver, workers int, metrics *searchtype.Metrics) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:    workers,
		jobsChan:   make(chan Job, workers*2),
		resultChan: make(chan *JobResult, workers*2),
		resolver:   resolver,
		metrics:    metrics,
		ctx:        ctx,
		cancel:     cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Submit submits a job to the pool for processing.
// This method blocks if the job queue is full.
func (p *Pool) Submit(job Job) bool {
	if p.closed.Load() {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return true
	}
}

// Results returns the channel for receiving job results.
func (p *Pool) Results() <-chan *JobResult {
	return p.resultChan
}

// Metrics returns the resolution metrics recorded by the workers.
func (p *Pool) Metrics() *searchtype.Metrics {
	return p.metrics
}

// Close shuts down the pool, dropping queued jobs and unread results.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}

	p.cancel()
	close(p.jobsChan)

	done := make(chan struct{})
	go func() {
		for range p.resultChan {
			// Discard results
		}
		close(done)
	}()

	p.wg.Wait()
	close(p.resultChan)
	<-done
}

// CloseAndWait stops accepting jobs, lets the workers finish every queued
// job and returns all results not yet read from Results().
func (p *Pool) CloseAndWait() *BatchResult {
	if p.closed.Swap(true) {
		return &BatchResult{}
	}

	close(p.jobsChan)

	go func() {
		p.wg.Wait()
		close(p.resultChan)
	}()

	results := make([]*JobResult, 0)
	for result := range p.resultChan {
		results = append(results, result)
	}
	p.cancel()

	batch := &BatchResult{Results: results}
	batch.tally()
	batch.TotalJobs = int(p.jobsSubmitted.Load()) //nolint:gosec // job counts fit in int
	return batch
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobsChan {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processJob(job)

		select {
		case <-p.ctx.Done():
			return
		case p.resultChan <- result:
		}
	}
}

func (p *Pool) processJob(job Job) *JobResult {
	start := time.Now()
	result := &JobResult{ID: job.ID, Seq: job.Seq}

	if p.resolver == nil {
		result.Error = ErrNoResolver
		result.Duration = time.Since(start).Nanoseconds()
		return result
	}

	result.Entry = p.resolver.Resolve(job.Target)
	result.Duration = time.Since(start).Nanoseconds()
	p.metrics.RecordResolution(time.Duration(result.Duration), len(result.Entry.Mappings), faultOf(result.Entry))
	return result
}

// faultOf returns the entry error unless the definition was merely skipped.
func faultOf(e searchparam.Entry) error {
	if e.Faulted() {
		return e.Err
	}
	return nil
}

// ErrNoResolver is returned when the pool has no resolver configured.
var ErrNoResolver = poolError("no resolver configured")

type poolError string

func (e poolError) Error() string {
	return string(e)
}
