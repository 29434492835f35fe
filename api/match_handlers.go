package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/matcher"
	"github.com/gcbaptista/go-titlematch/internal/scoring"
	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// MatchOptions select the scorer thresholds and query shape of a request.
// MatchSettings is a partial object overlaid field by field on Preset, or on the
// server configuration when no preset is named.
type MatchOptions struct {
	Preset        string          `json:"preset,omitempty"` // "strict" or "loose"
	MatchSettings json.RawMessage `json:"match_settings,omitempty"`
	QueryType     string          `json:"query_type,omitempty"`
	Size          int             `json:"size,omitempty"`
}

// MatchRequest asks for the confident matches of one origin title.
type MatchRequest struct {
	MatchOptions
	OriginID         string `json:"origin_id"`
	OriginDataset    string `json:"origin_dataset"`
	Title            string `json:"title"`
	TargetCollection string `json:"target_collection"`
}

// CandidateView is a ranked candidate in a match response.
type CandidateView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Score     float64  `json:"score"`
	FuzzRatio *float64 `json:"fuzz_ratio,omitempty"` // Present when the scan needed the fuzzy gate
	Confident bool     `json:"confident"`
}

// MatchResponse is the outcome of a single-title match.
type MatchResponse struct {
	Origin           model.OriginDocument `json:"origin"`
	TargetCollection string               `json:"target_collection"`
	Count            int                  `json:"count"`
	Matches          []string             `json:"matches"`
	StopReason       scoring.StopReason   `json:"stop_reason"`
	Candidates       []CandidateView      `json:"candidates"`
	QueryID          string               `json:"query_id,omitempty"`
	TookMs           int64                `json:"took_ms"`
}

// CollectionMatchRequest asks for the confident matches of a batch of origins.
type CollectionMatchRequest struct {
	MatchOptions
	OriginDataset    string              `json:"origin_dataset"`
	TargetCollection string              `json:"target_collection"`
	Origins          []model.OriginEntry `json:"origins"`
}

// resolve returns the scorer, match settings and provider settings a request runs with.
func (api *API) resolve(opts MatchOptions) (*scoring.Scorer, config.MatchSettings, config.ProviderSettings, *ValidationResult) {
	result := &ValidationResult{Valid: true}
	providerSettings := api.providerSettings
	if opts.QueryType != "" {
		providerSettings.QueryType = opts.QueryType
	}
	if opts.Size != 0 {
		providerSettings.Size = opts.Size
	}
	for _, problem := range providerSettings.Validate() {
		result.AddError("query", problem)
	}

	settings := api.matchSettings
	if opts.Preset != "" {
		preset, ok := config.PresetMatchSettings(opts.Preset)
		if !ok {
			result.AddError("preset", "Unknown preset '"+opts.Preset+"' (must be 'strict' or 'loose')")
			return nil, settings, providerSettings, result
		}
		preset.Concurrency = settings.Concurrency
		preset.DuplicatePolicy = settings.DuplicatePolicy
		settings = preset
	}
	if len(opts.MatchSettings) > 0 {
		if err := json.Unmarshal(opts.MatchSettings, &settings); err != nil {
			result.AddError("match_settings", "Invalid match settings: "+err.Error())
			return nil, settings, providerSettings, result
		}
		if validation := ValidateMatchSettings(&settings); validation.HasErrors() {
			return nil, settings, providerSettings, validation
		}
	}
	if result.HasErrors() {
		return nil, settings, providerSettings, result
	}

	if len(opts.MatchSettings) == 0 && opts.Preset == "" {
		return api.scorer, settings, providerSettings, result
	}
	scorer, err := scoring.NewScorer(settings, scoring.WithLogger(api.logger))
	if err != nil {
		result.AddError("match_settings", err.Error())
		return nil, settings, providerSettings, result
	}
	return scorer, settings, providerSettings, result
}

// MatchHandler handles POST /match.
func (api *API) MatchHandler(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if validation := ValidateTitle("title", req.Title); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}
	if validation := ValidateCollectionName("target_collection", req.TargetCollection); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}
	scorer, _, providerSettings, validation := api.resolve(req.MatchOptions)
	if validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}

	originID := req.OriginID
	if originID == "" {
		originID = "request"
	}
	origin := model.NewOriginDocument(originID, req.Title, req.OriginDataset)
	dm := matcher.NewDocMatch(origin, req.TargetCollection, api.provider, scorer, providerSettings)

	ctx, cancel := api.requestContext(c)
	defer cancel()
	ids, err := dm.ConfidentMatchIDs(ctx)
	if err != nil {
		if errors.Is(err, internalErrors.ErrProvider) {
			SendProviderError(c, req.TargetCollection, err)
			return
		}
		SendInternalError(c, "match", err)
		return
	}

	outcome, _ := dm.Outcome()
	response := MatchResponse{
		Origin:           origin,
		TargetCollection: req.TargetCollection,
		Count:            len(ids),
		Matches:          ids,
		StopReason:       outcome.Reason,
		Candidates:       candidateViews(dm.Candidates(), len(ids)),
	}
	if providerResponse := dm.Response(); providerResponse != nil {
		response.QueryID = providerResponse.QueryID
		response.TookMs = providerResponse.TookMs
	}
	c.JSON(http.StatusOK, response)
}

func candidateViews(candidates []*model.Candidate, confident int) []CandidateView {
	views := make([]CandidateView, len(candidates))
	for i, candidate := range candidates {
		views[i] = CandidateView{
			ID:        candidate.ID,
			Title:     candidate.Title,
			Score:     candidate.Score,
			Confident: i < confident,
		}
		if ratio, ok := candidate.FuzzRatio(); ok {
			views[i].FuzzRatio = &ratio
		}
	}
	return views
}

// MatchCollectionHandler handles POST /collections/match.
// The batch runs as a background job; the response carries its ID.
func (api *API) MatchCollectionHandler(c *gin.Context) {
	var req CollectionMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if validation := ValidateCollectionName("target_collection", req.TargetCollection); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}
	if validation := ValidateOriginEntries(req.Origins); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}
	scorer, settings, providerSettings, validation := api.resolve(req.MatchOptions)
	if validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}

	var jobID string
	collectionMatcher, err := matcher.NewCollectionMatcherFromEntries(req.Origins, req.OriginDataset, req.TargetCollection,
		api.provider, scorer,
		matcher.WithConcurrency(settings.Concurrency),
		matcher.WithDuplicatePolicy(settings.DuplicatePolicy),
		matcher.WithProviderSettings(providerSettings),
		matcher.WithLogger(api.logger),
		matcher.WithProgress(func(done, total int) {
			api.jobs.UpdateJobProgress(jobID, done, total, "Matching origin documents")
		}))
	if err != nil {
		if errors.Is(err, internalErrors.ErrDuplicateOrigin) {
			SendError(c, http.StatusBadRequest, ErrorCodeDuplicateOrigin, err.Error())
			return
		}
		SendInternalError(c, "collection match", err)
		return
	}

	jobID = api.jobs.CreateJob(model.JobTypeMatchCollection, req.TargetCollection, map[string]string{
		"origin_dataset": req.OriginDataset,
		"origin_count":   strconv.Itoa(collectionMatcher.Len()),
	})

	settingsJSON, _ := json.Marshal(gin.H{"match": settings, "provider": providerSettings})
	err = api.jobs.ExecuteJob(jobID, func(ctx context.Context, _ *model.Job) error {
		result, err := collectionMatcher.GetAllConfidentMatches(ctx)
		if result != nil {
			// Partial results of a cancelled batch are served but never stored.
			api.jobs.SetJobResult(jobID, result)
		}
		if err != nil {
			return err
		}
		api.saveRun(jobID, result, string(settingsJSON))
		return nil
	})
	if err != nil {
		SendJobExecutionError(c, "collection match", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Matching " + strconv.Itoa(collectionMatcher.Len()) + " origin documents against '" + req.TargetCollection + "'",
		"job_id":  jobID,
	})
}

// saveRun persists a finished batch when a result store is configured.
// Persistence failures are logged and recorded on the job; the result stays served from memory.
func (api *API) saveRun(jobID string, result *model.CollectionResult, settingsJSON string) {
	if api.results == nil {
		return
	}
	runID, err := api.results.SaveRun(context.Background(), result, settingsJSON)
	if err != nil {
		api.logger.Error("failed to persist collection result", "job_id", jobID, "error", err)
		api.jobs.SetJobMetadata(jobID, "persist_error", err.Error())
		return
	}
	api.jobs.SetJobMetadata(jobID, "run_id", runID)
}
