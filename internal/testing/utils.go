// Package testing provides utilities and helpers for testing title matching.
package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// FakeProvider is a scripted CandidateProvider.
// Responses are keyed by origin title; titles without a script return no hits.
type FakeProvider struct {
	mu        sync.Mutex
	hits      map[string][]services.Hit
	errs      map[string]error
	failures  map[string]int // Remaining scripted failures per title
	delay     time.Duration
	calls     map[string]int
	queries   []services.ProviderQuery
	inFlight  int
	maxFlight int
}

// NewFakeProvider creates an empty FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		hits:     make(map[string][]services.Hit),
		errs:     make(map[string]error),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// WithHits scripts the hits returned for title, in the given order.
func (f *FakeProvider) WithHits(title string, hits ...services.Hit) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[title] = hits
	return f
}

// WithError makes every query for title fail with err.
func (f *FakeProvider) WithError(title string, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[title] = err
	return f
}

// WithFailures makes the first n queries for title fail with err before the scripted hits are served.
func (f *FakeProvider) WithFailures(title string, n int, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[title] = err
	f.failures[title] = n
	return f
}

// WithDelay makes every query block for d or until its context is done.
func (f *FakeProvider) WithDelay(d time.Duration) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Query implements services.CandidateProvider.
func (f *FakeProvider) Query(ctx context.Context, query services.ProviderQuery) (*services.ProviderResponse, error) {
	f.mu.Lock()
	f.calls[query.Title]++
	f.queries = append(f.queries, query)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, internalErrors.NewTransientProviderError(query.TargetCollection, "search", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.errs[query.Title]; ok {
		remaining, scripted := f.failures[query.Title]
		if !scripted {
			return nil, err
		}
		if remaining > 0 {
			f.failures[query.Title] = remaining - 1
			return nil, err
		}
	}

	hits := f.hits[query.Title]
	if query.Size > 0 && len(hits) > query.Size {
		hits = hits[:query.Size]
	}
	copied := make([]services.Hit, len(hits))
	copy(copied, hits)

	return &services.ProviderResponse{
		Hits:    copied,
		Total:   len(f.hits[query.Title]),
		QueryID: uuid.New().String(),
		Query:   query,
	}, nil
}

// Calls returns how many times title was queried.
func (f *FakeProvider) Calls(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[title]
}

// TotalCalls returns the number of queries received.
func (f *FakeProvider) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// Queries returns a copy of every query received, in arrival order.
func (f *FakeProvider) Queries() []services.ProviderQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	queries := make([]services.ProviderQuery, len(f.queries))
	copy(queries, f.queries)
	return queries
}

// MaxConcurrent returns the highest number of queries observed in flight at once.
func (f *FakeProvider) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}

// Hits builds hits from alternating id/score pairs, titled "title <id>".
func Hits(pairs ...interface{}) []services.Hit {
	if len(pairs)%2 != 0 {
		panic("Hits requires id/score pairs")
	}
	hits := make([]services.Hit, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		id := fmt.Sprint(pairs[i])
		var score float64
		switch v := pairs[i+1].(type) {
		case float64:
			score = v
		case int:
			score = float64(v)
		default:
			panic(fmt.Sprintf("unsupported score type %T", v))
		}
		hits = append(hits, services.Hit{ID: id, Title: "title " + id, Score: score})
	}
	return hits
}

// JobPollingOptions configures job polling behavior
type JobPollingOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	LogProgress  bool
}

// DefaultJobPollingOptions returns sensible defaults for job polling
func DefaultJobPollingOptions() JobPollingOptions {
	return JobPollingOptions{
		Timeout:      10 * time.Second,
		PollInterval: 20 * time.Millisecond,
		LogProgress:  false,
	}
}

// WaitForJob polls a job until it reaches a terminal status or times out.
func WaitForJob(t *testing.T, jobManager services.JobManager, jobID string, opts JobPollingOptions) *model.Job {
	t.Helper()
	timeout := time.After(opts.Timeout)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			t.Fatalf("Job %s did not finish within %v timeout", jobID, opts.Timeout)
			return nil
		case <-ticker.C:
			job, err := jobManager.GetJob(jobID)
			require.NoError(t, err, "Failed to get job status")

			switch job.Status {
			case model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
				return job
			case model.JobStatusRunning:
				if opts.LogProgress && job.Progress != nil {
					t.Logf("Job %s progress: %d/%d - %s",
						jobID,
						job.Progress.Current,
						job.Progress.Total,
						job.Progress.Message)
				}
			}
		}
	}
}

// AssertJobCompleted verifies that a job completed successfully
func AssertJobCompleted(t *testing.T, job *model.Job, expectedType model.JobType, expectedCollection string) {
	t.Helper()
	assert.Equal(t, model.JobStatusCompleted, job.Status, "Job should be completed")
	assert.Equal(t, expectedType, job.Type, "Job type should match")
	assert.Equal(t, expectedCollection, job.TargetCollection, "Job target collection should match")
	assert.NotNil(t, job.CompletedAt, "Job should have completion timestamp")
	assert.Empty(t, job.Error, "Job should not have error")
}

// AssertDescending fails the test when hits are not ordered by descending score.
func AssertDescending(t *testing.T, hits []services.Hit) {
	t.Helper()
	ok := sort.SliceIsSorted(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	assert.True(t, ok, "hits should be ordered by descending score: %v", hits)
}
