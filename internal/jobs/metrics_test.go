package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gcbaptista/go-titlematch/model"
)

func TestJobMetrics(t *testing.T) {
	metrics := NewJobMetrics()
	assert.Equal(t, 1.0, metrics.GetSuccessRate(), "no finished job yet")

	metrics.RecordJobCreated(model.JobTypeMatchCollection)
	metrics.RecordJobCreated(model.JobTypeMatchCollection)
	metrics.RecordJobCreated(model.JobTypeBuildIndex)
	assert.Equal(t, int64(3), metrics.GetCurrentWorkload())

	metrics.RecordJobStatusChange(model.JobStatusPending, model.JobStatusRunning)
	metrics.RecordJobStatusChange(model.JobStatusRunning, model.JobStatusCompleted)
	metrics.RecordJobCompleted(model.JobTypeMatchCollection, 2*time.Second)

	metrics.RecordJobStatusChange(model.JobStatusPending, model.JobStatusFailed)
	metrics.RecordJobFailed(model.JobTypeMatchCollection)

	metrics.RecordJobStatusChange(model.JobStatusPending, model.JobStatusCancelled)
	metrics.RecordJobCancelled(model.JobTypeBuildIndex)

	data := metrics.GetMetrics()
	assert.Equal(t, int64(3), data.JobsCreated)
	assert.Equal(t, int64(1), data.JobsCompleted)
	assert.Equal(t, int64(1), data.JobsFailed)
	assert.Equal(t, int64(1), data.JobsCancelled)
	assert.Equal(t, 2*time.Second, data.AverageExecutionTime)
	assert.Equal(t, TypeMetrics{Created: 2, Completed: 1, Failed: 1, AverageDuration: 2 * time.Second},
		data.ByType[model.JobTypeMatchCollection])
	assert.Equal(t, int64(1), data.ByType[model.JobTypeBuildIndex].Cancelled)
	assert.Equal(t, int64(0), metrics.GetCurrentWorkload())
	assert.Equal(t, 0.5, metrics.GetSuccessRate())

	// The returned copy is detached.
	data.JobsByStatus[model.JobStatusCompleted] = 99
	assert.Equal(t, int64(1), metrics.GetMetrics().JobsByStatus[model.JobStatusCompleted])
}

func TestJobMetricsAverageUsesRecentWindow(t *testing.T) {
	metrics := NewJobMetrics()
	for i := 0; i < durationWindow; i++ {
		metrics.RecordJobCompleted(model.JobTypeBuildIndex, time.Hour)
	}
	for i := 0; i < durationWindow; i++ {
		metrics.RecordJobCompleted(model.JobTypeBuildIndex, time.Second)
	}

	assert.Equal(t, time.Second, metrics.GetMetrics().ByType[model.JobTypeBuildIndex].AverageDuration)
}
