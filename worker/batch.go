package worker

import (
	"context"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/searchparam"
)

// BatchResolver resolves a fixed list of targets in parallel.
type BatchResolver struct {
	resolver Resolver
	workers  int
	metrics  *searchtype.Metrics
}

// NewBatchResolver creates a new batch resolver. WorkerCount applies.
func NewBatchResolver(resolver Resolver, opts ...searchtype.Option) *BatchResolver {
	o := searchtype.DefaultOptions().Apply(opts...)
	return &BatchResolver{
		resolver: resolver,
		workers:  o.WorkerCount,
		metrics:  searchtype.NewMetrics(),
	}
}

// Metrics returns the metrics recorded across all batches.
func (br *BatchResolver) Metrics() *searchtype.Metrics {
	return br.metrics
}

// ResolveBatch resolves targets and returns the results in input order.
// Targets not resolved before ctx is done are left nil in Results.
func (br *BatchResolver) ResolveBatch(ctx context.Context, targets []searchparam.Target) *BatchResult {
	if len(targets) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	// For small batches, don't use parallelism
	if len(targets) <= 2 || br.workers == 1 {
		return br.resolveSequential(ctx, targets)
	}

	return br.resolveParallel(ctx, targets)
}

func (br *BatchResolver) resolveSequential(ctx context.Context, targets []searchparam.Target) *BatchResult {
	results := make([]*JobResult, len(targets))

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		results[i] = br.resolveOne(i, t)
	}

	return br.finish(results)
}

// resolveParallel streams targets through a Pool. When ctx is done no
// further targets are submitted and the pool is closed without waiting.
func (br *BatchResolver) resolveParallel(ctx context.Context, targets []searchparam.Target) *BatchResult {
	p := newPool(br.resolver, min(br.workers, len(targets)), br.metrics)

	collected := make(chan []*JobResult, 1)
	go func() {
		var rs []*JobResult
		for r := range p.Results() {
			rs = append(rs, r)
		}
		collected <- rs
	}()

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		p.Submit(Job{ID: t.String(), Seq: i, Target: t})
	}

	var rest []*JobResult
	if ctx.Err() != nil {
		p.Close()
	} else {
		rest = p.CloseAndWait().Results
	}

	results := make([]*JobResult, len(targets))
	for _, r := range append(<-collected, rest...) {
		results[r.Seq] = r
	}
	return br.finish(results)
}

func (br *BatchResolver) resolveOne(seq int, t searchparam.Target) *JobResult {
	result := &JobResult{ID: t.String(), Seq: seq}
	if br.resolver == nil {
		result.Error = ErrNoResolver
		return result
	}
	result.Entry = br.resolver.Resolve(t)
	result.Duration = result.Entry.Duration.Nanoseconds()
	br.metrics.RecordResolution(result.Entry.Duration, len(result.Entry.Mappings), faultOf(result.Entry))
	return result
}

func (br *BatchResolver) finish(results []*JobResult) *BatchResult {
	batch := &BatchResult{Results: results, TotalJobs: len(results)}
	batch.tally()
	return batch
}

// ResolveBatchSimple is a convenience function for batch resolution.
func ResolveBatchSimple(ctx context.Context, resolver Resolver, targets []searchparam.Target) *BatchResult {
	return NewBatchResolver(resolver).ResolveBatch(ctx, targets)
}
