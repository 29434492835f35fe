package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-titlematch/internal/resultstore"
)

// ListRunsHandler lists stored collection results, newest first.
func (api *API) ListRunsHandler(c *gin.Context) {
	if api.results == nil {
		SendNotSupportedError(c, "Stored runs")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "limit must be an integer")
			return
		}
		limit = parsed
	}
	limit, validation := ValidateLimit(limit)
	if validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}

	runs, err := api.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		SendInternalError(c, "list runs", err)
		return
	}
	if runs == nil {
		runs = []resultstore.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// GetRunHandler returns a stored run with its full result.
func (api *API) GetRunHandler(c *gin.Context) {
	if api.results == nil {
		SendNotSupportedError(c, "Stored runs")
		return
	}
	runID := c.Param("runId")

	run, err := api.results.GetRun(c.Request.Context(), runID)
	if err != nil {
		sendRunError(c, runID, "get run", err)
		return
	}
	result, err := api.results.LoadResult(c.Request.Context(), runID)
	if err != nil {
		sendRunError(c, runID, "load run", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": run, "result": result})
}

// DeleteRunHandler removes a stored run.
func (api *API) DeleteRunHandler(c *gin.Context) {
	if api.results == nil {
		SendNotSupportedError(c, "Stored runs")
		return
	}
	runID := c.Param("runId")

	if err := api.results.DeleteRun(c.Request.Context(), runID); err != nil {
		sendRunError(c, runID, "delete run", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Run '" + runID + "' deleted"})
}

func sendRunError(c *gin.Context, runID, operation string, err error) {
	if errors.Is(err, resultstore.ErrRunNotFound) {
		SendError(c, http.StatusNotFound, ErrorCodeRunNotFound, "Run '"+runID+"' not found")
		return
	}
	SendInternalError(c, operation, err)
}
