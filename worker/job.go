package worker

import "github.com/gofhir/searchtype/searchparam"

// Job is one definition/base pair to resolve.
type Job struct {
	// ID is a unique identifier for this job.
	ID string

	// Seq is the position of the job in its batch.
	Seq int

	Target searchparam.Target
}

// JobResult is the outcome of a Job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	Seq int

	Entry searchparam.Entry

	// Error is set when the job could not run at all, e.g. the pool has no
	// resolver. Resolution faults are reported in Entry.Err.
	Error error

	// Duration is the time taken to resolve (in nanoseconds).
	Duration int64
}

// Faulted reports whether the job failed to run or its resolution faulted.
func (r *JobResult) Faulted() bool {
	return r.Error != nil || r.Entry.Faulted()
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including faults).
	CompletedJobs int

	// FailedJobs is the number of jobs that faulted.
	FailedJobs int

	// SkippedJobs is the number of definitions with nothing to resolve.
	SkippedJobs int

	// TotalDuration is the total time for all resolutions (in nanoseconds).
	TotalDuration int64
}

// HasFaults returns true if any job faulted.
func (br *BatchResult) HasFaults() bool {
	for _, r := range br.Results {
		if r != nil && r.Faulted() {
			return true
		}
	}
	return false
}

// MappingCount returns the number of resolved mappings across all results.
func (br *BatchResult) MappingCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil {
			count += len(r.Entry.Mappings)
		}
	}
	return count
}

// Entries returns the entries of all completed jobs.
func (br *BatchResult) Entries() []searchparam.Entry {
	entries := make([]searchparam.Entry, 0, len(br.Results))
	for _, r := range br.Results {
		if r != nil {
			entries = append(entries, r.Entry)
		}
	}
	return entries
}

func (br *BatchResult) tally() {
	br.CompletedJobs, br.FailedJobs, br.SkippedJobs, br.TotalDuration = 0, 0, 0, 0
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		br.CompletedJobs++
		br.TotalDuration += r.Duration
		switch {
		case r.Faulted():
			br.FailedJobs++
		case r.Entry.Skipped():
			br.SkippedJobs++
		}
	}
}
