// Package worker resolves search parameters in parallel.
//
// BatchResolver is the usual entry point: it streams a fixed list of targets
// through a Pool and returns the results in input order.
//
//	br := worker.NewBatchResolver(indexer, searchtype.WithWorkerCount(4))
//	batch := br.ResolveBatch(ctx, indexer.Targets("", ""))
//	if batch.HasFaults() {
//	    // inspect batch.Results
//	}
//
// A Pool can also be fed directly. Results must be read while jobs are
// submitted once more jobs are queued than the pool buffers; CloseAndWait
// returns whatever is left.
package worker
