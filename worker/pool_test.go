package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	ff "github.com/fhirflat/fhirflat"
)

// fakeConverter echoes the flat row back as the resource.
type fakeConverter struct {
	err error
}

func (c *fakeConverter) ValidateFlat(_ context.Context, flat map[string]any, resourceType string) (map[string]any, *ff.Result, error) {
	if c.err != nil {
		return nil, nil, c.err
	}

	result := ff.AcquireResult()
	result.ResourceType = resourceType

	resource := make(map[string]any, len(flat)+1)
	for k, v := range flat {
		resource[k] = v
	}
	resource["resourceType"] = resourceType
	return resource, result, nil
}

func TestPool_SubmitAndCollect(t *testing.T) {
	pool := NewPool(&fakeConverter{}, 4)

	const jobs = 20
	go func() {
		for i := 0; i < jobs; i++ {
			pool.Submit(Job{
				ID:           fmt.Sprintf("%d", i),
				Row:          i + 1,
				ResourceType: "Patient",
				Flat:         map[string]any{"id": fmt.Sprintf("p%d", i)},
			})
		}
	}()

	collected := 0
	for result := range pool.Results() {
		if result.Error != nil {
			t.Errorf("Job %s failed: %v", result.ID, result.Error)
		}
		if result.Resource["resourceType"] != "Patient" {
			t.Errorf("Job %s resource = %v", result.ID, result.Resource)
		}
		if result.Result.Row == 0 {
			t.Errorf("Job %s result missing row number", result.ID)
		}
		result.Result.Release()
		collected++
		if collected == jobs {
			break
		}
	}

	pool.Close()

	stats := pool.Stats()
	if stats.JobsSubmitted != jobs {
		t.Errorf("JobsSubmitted = %d; want %d", stats.JobsSubmitted, jobs)
	}
}

func TestPool_CloseAndWait(t *testing.T) {
	pool := NewPool(&fakeConverter{}, 2)

	for i := 0; i < 5; i++ {
		if !pool.Submit(Job{ID: fmt.Sprintf("%d", i), ResourceType: "Patient", Flat: map[string]any{}}) {
			t.Fatalf("Submit(%d) returned false", i)
		}
	}

	batch := pool.CloseAndWait()

	if len(batch.Results) != 5 {
		t.Errorf("Collected %d results; want 5", len(batch.Results))
	}
	if batch.TotalJobs != 5 {
		t.Errorf("TotalJobs = %d; want 5", batch.TotalJobs)
	}
	for _, r := range batch.Results {
		r.Result.Release()
	}
}

func TestPool_SubmitAfterClose(t *testing.T) {
	pool := NewPool(&fakeConverter{}, 1)
	pool.Close()

	if pool.Submit(Job{ID: "x"}) {
		t.Error("Submit succeeded on closed pool")
	}
	if pool.SubmitAsync(Job{ID: "y"}) {
		t.Error("SubmitAsync succeeded on closed pool")
	}
}

func TestPool_ConverterError(t *testing.T) {
	wantErr := errors.New("conversion exploded")
	pool := NewPool(&fakeConverter{err: wantErr}, 1)

	pool.Submit(Job{ID: "1", ResourceType: "Patient", Flat: map[string]any{}})

	result := <-pool.Results()
	if !errors.Is(result.Error, wantErr) {
		t.Errorf("Error = %v; want %v", result.Error, wantErr)
	}

	pool.Close()
}

func TestPool_NoConverter(t *testing.T) {
	pool := NewPool(nil, 1)

	pool.Submit(Job{ID: "1"})

	result := <-pool.Results()
	if !errors.Is(result.Error, ErrNoConverter) {
		t.Errorf("Error = %v; want %v", result.Error, ErrNoConverter)
	}

	pool.Close()
}

func TestBatchResult_Helpers(t *testing.T) {
	ok := ff.AcquireResult()
	bad := ff.AcquireResult()
	bad.AddError(ff.IssueTypeValue, "broken", "field")

	batch := &BatchResult{
		Results: []*JobResult{
			{ID: "1", Result: ok},
			{ID: "2", Result: bad},
			{ID: "3", Error: errors.New("boom")},
		},
	}

	if !batch.HasErrors() {
		t.Error("HasErrors() = false; want true")
	}
	if got := batch.ValidCount(); got != 1 {
		t.Errorf("ValidCount() = %d; want 1", got)
	}

	ok.Release()
	bad.Release()
}
