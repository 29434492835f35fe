package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// GetJobHandler handles requests to get job status by ID
func (api *API) GetJobHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := api.jobs.GetJob(jobID)
	if err != nil {
		SendJobNotFoundError(c, jobID)
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetJobResultsHandler returns the collection result of a matching job.
// Cancelled jobs return the origins processed before cancellation.
func (api *API) GetJobResultsHandler(c *gin.Context) {
	jobID := c.Param("jobId")

	job, err := api.jobs.GetJob(jobID)
	if err != nil {
		if errors.Is(err, internalErrors.ErrJobNotFound) {
			SendJobNotFoundError(c, jobID)
			return
		}
		SendInternalError(c, "get job", err)
		return
	}

	if job.Result == nil {
		switch job.Status {
		case model.JobStatusPending, model.JobStatusRunning:
			SendError(c, http.StatusConflict, ErrorCodeJobNotFinished,
				"Job '"+jobID+"' is still "+string(job.Status))
		default:
			SendError(c, http.StatusNotFound, ErrorCodeJobNotFound,
				"Job '"+jobID+"' has no collection result")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":        job.ID,
		"status":        job.Status,
		"run_id":        job.Metadata["run_id"],
		"matched_count": job.Result.MatchedCount(),
		"failure_count": len(job.Result.Failures),
		"result":        job.Result,
	})
}

// ListJobsHandler handles requests to list jobs, optionally filtered by
// target collection and status
func (api *API) ListJobsHandler(c *gin.Context) {
	collection := c.Query("collection")
	statusParam := c.Query("status")

	var statusFilter *model.JobStatus
	if statusParam != "" {
		status := model.JobStatus(statusParam)
		statusFilter = &status
	}

	jobs := api.jobs.ListJobs(collection, statusFilter)
	c.JSON(http.StatusOK, gin.H{
		"jobs":              jobs,
		"target_collection": collection,
		"total":             len(jobs),
	})
}

// GetJobMetricsHandler handles requests to get job performance metrics
func (api *API) GetJobMetricsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":          api.jobs.GetMetrics(),
		"success_rate":     api.jobs.GetJobSuccessRate(),
		"current_workload": api.jobs.GetCurrentWorkload(),
	})
}
