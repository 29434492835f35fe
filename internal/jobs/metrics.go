package jobs

import (
	"sync"
	"time"

	"github.com/gcbaptista/go-titlematch/model"
)

// durationWindow is the number of recent execution times kept per job type.
const durationWindow = 100

// TypeMetrics summarizes the jobs of one type.
type TypeMetrics struct {
	Created         int64         `json:"created"`
	Completed       int64         `json:"completed"`
	Failed          int64         `json:"failed"`
	Cancelled       int64         `json:"cancelled"`
	AverageDuration time.Duration `json:"average_duration_ns"` // Over the most recent completions
}

// JobMetricsData is a point-in-time copy of the metrics.
type JobMetricsData struct {
	JobsCreated          int64                         `json:"jobs_created"`
	JobsCompleted        int64                         `json:"jobs_completed"`
	JobsFailed           int64                         `json:"jobs_failed"`
	JobsCancelled        int64                         `json:"jobs_cancelled"`
	TotalExecutionTime   time.Duration                 `json:"total_execution_time_ns"`
	AverageExecutionTime time.Duration                 `json:"average_execution_time_ns"`
	ByType               map[model.JobType]TypeMetrics `json:"by_type"`
	JobsByStatus         map[model.JobStatus]int64     `json:"jobs_by_status"`
	LastUpdated          time.Time                     `json:"last_updated"`
}

// JobMetrics tracks counters and execution times of matching and build jobs.
type JobMetrics struct {
	mu sync.RWMutex

	created, completed, failed, cancelled int64
	totalExecutionTime                    time.Duration

	byType    map[model.JobType]*TypeMetrics
	durations map[model.JobType][]time.Duration
	byStatus  map[model.JobStatus]int64

	lastUpdated time.Time
}

// NewJobMetrics creates a new metrics collector
func NewJobMetrics() *JobMetrics {
	return &JobMetrics{
		byType:      make(map[model.JobType]*TypeMetrics),
		durations:   make(map[model.JobType][]time.Duration),
		byStatus:    make(map[model.JobStatus]int64),
		lastUpdated: time.Now(),
	}
}

// typeMetrics must be called with m.mu held.
func (m *JobMetrics) typeMetrics(jobType model.JobType) *TypeMetrics {
	tm, ok := m.byType[jobType]
	if !ok {
		tm = &TypeMetrics{}
		m.byType[jobType] = tm
	}
	return tm
}

// RecordJobCreated counts a new pending job.
func (m *JobMetrics) RecordJobCreated(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.created++
	m.typeMetrics(jobType).Created++
	m.byStatus[model.JobStatusPending]++
	m.lastUpdated = time.Now()
}

// RecordJobStatusChange moves a job between status counters.
func (m *JobMetrics) RecordJobStatusChange(oldStatus, newStatus model.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldStatus != "" && m.byStatus[oldStatus] > 0 {
		m.byStatus[oldStatus]--
	}
	m.byStatus[newStatus]++
	m.lastUpdated = time.Now()
}

// RecordJobCompleted records a successful job and its execution time.
func (m *JobMetrics) RecordJobCompleted(jobType model.JobType, executionTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed++
	m.totalExecutionTime += executionTime

	recent := append(m.durations[jobType], executionTime)
	if len(recent) > durationWindow {
		recent = recent[len(recent)-durationWindow:]
	}
	m.durations[jobType] = recent

	var sum time.Duration
	for _, d := range recent {
		sum += d
	}
	tm := m.typeMetrics(jobType)
	tm.Completed++
	tm.AverageDuration = sum / time.Duration(len(recent))
	m.lastUpdated = time.Now()
}

// RecordJobFailed records a job that returned an error.
func (m *JobMetrics) RecordJobFailed(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed++
	m.typeMetrics(jobType).Failed++
	m.lastUpdated = time.Now()
}

// RecordJobCancelled records a job stopped by shutdown.
func (m *JobMetrics) RecordJobCancelled(jobType model.JobType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelled++
	m.typeMetrics(jobType).Cancelled++
	m.lastUpdated = time.Now()
}

// GetMetrics returns a copy of the current metrics.
func (m *JobMetrics) GetMetrics() JobMetricsData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := JobMetricsData{
		JobsCreated:        m.created,
		JobsCompleted:      m.completed,
		JobsFailed:         m.failed,
		JobsCancelled:      m.cancelled,
		TotalExecutionTime: m.totalExecutionTime,
		ByType:             make(map[model.JobType]TypeMetrics, len(m.byType)),
		JobsByStatus:       make(map[model.JobStatus]int64, len(m.byStatus)),
		LastUpdated:        m.lastUpdated,
	}
	if m.completed > 0 {
		data.AverageExecutionTime = m.totalExecutionTime / time.Duration(m.completed)
	}
	for jobType, tm := range m.byType {
		data.ByType[jobType] = *tm
	}
	for status, n := range m.byStatus {
		data.JobsByStatus[status] = n
	}
	return data
}

// GetSuccessRate returns completed jobs over finished jobs, from 0 to 1.
// Cancelled jobs are not counted. With no finished job the rate is 1.
func (m *JobMetrics) GetSuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	finished := m.completed + m.failed
	if finished == 0 {
		return 1.0
	}
	return float64(m.completed) / float64(finished)
}

// GetCurrentWorkload returns the number of pending and running jobs.
func (m *JobMetrics) GetCurrentWorkload() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.byStatus[model.JobStatusPending] + m.byStatus[model.JobStatusRunning]
}
