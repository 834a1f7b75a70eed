package worker

import ff "github.com/fhirflat/fhirflat"

// Job represents a single row conversion to be processed by a worker.
type Job struct {
	// ID is a unique identifier for this job.
	ID string

	// Row is the 1-based source row number.
	Row int

	// ResourceType names the resource type the row maps to.
	ResourceType string

	// Flat holds the flat column values for the row.
	Flat map[string]any
}

// JobResult represents the result of a conversion job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Row is the source row number carried over from the job.
	Row int

	// Resource is the expanded FHIR resource, nil when expansion failed.
	Resource map[string]any

	// Result contains the validation result for the row.
	Result *ff.Result

	// Error contains any error that occurred during conversion.
	Error error

	// Duration is the time taken to convert (in nanoseconds).
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// TotalDuration is the total time for all conversions (in nanoseconds).
	TotalDuration int64
}

// HasErrors returns true if any job result has validation errors.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r.Error != nil {
			return true
		}
		if r.Result != nil && r.Result.HasErrors() {
			return true
		}
	}
	return false
}

// ValidCount returns the number of jobs whose rows passed validation.
func (br *BatchResult) ValidCount() int {
	n := 0
	for _, r := range br.Results {
		if r.Error == nil && r.Result != nil && !r.Result.HasErrors() {
			n++
		}
	}
	return n
}
