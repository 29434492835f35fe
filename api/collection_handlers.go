package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// BuildCollectionRequest carries the settings and documents of a local collection.
type BuildCollectionRequest struct {
	Settings  config.CollectionSettings `json:"settings"`
	Documents []model.TargetDocument    `json:"documents"`
}

// ListCollectionsHandler lists the target collections the provider can query.
func (api *API) ListCollectionsHandler(c *gin.Context) {
	var names []string
	switch {
	case api.engine != nil:
		names = api.engine.ListCollections()
	case api.lister == nil:
		SendNotSupportedError(c, "Listing collections")
		return
	default:
		ctx, cancel := api.requestContext(c)
		defer cancel()
		var err error
		names, err = api.lister.ListCollections(ctx)
		if err != nil {
			SendProviderError(c, "", err)
			return
		}
	}

	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"collections": names,
		"total":       len(names),
	})
}

// BuildCollectionHandler builds (or rebuilds) a local collection in the background.
// The collection becomes visible to searches only once the build completes.
func (api *API) BuildCollectionHandler(c *gin.Context) {
	if api.engine == nil {
		SendNotSupportedError(c, "Building collections")
		return
	}

	var req BuildCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if validation := ValidateCollectionSettings(&req.Settings); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}
	if validation := ValidateTargetDocuments(req.Documents, req.Settings.IDField); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}

	jobID, err := api.engine.BuildCollectionAsync(req.Settings, req.Documents)
	if err != nil {
		if errors.Is(err, internalErrors.ErrInvalidInput) {
			SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
			return
		}
		SendJobExecutionError(c, "collection build", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Collection build started for '" + req.Settings.Name + "'",
		"job_id":  jobID,
	})
}

// GetCollectionHandler returns the settings and size of a local collection.
func (api *API) GetCollectionHandler(c *gin.Context) {
	if api.engine == nil {
		SendNotSupportedError(c, "Collection details")
		return
	}
	name := c.Param("collection")

	collection, err := api.engine.GetCollection(name)
	if err != nil {
		SendCollectionNotFoundError(c, name)
		return
	}

	settings := collection.Settings()
	c.JSON(http.StatusOK, gin.H{
		"name":              settings.Name,
		"id_field":          settings.IDField,
		"searchable_fields": settings.SearchableFields,
		"document_count":    collection.DocumentCount(),
	})
}

// DeleteCollectionHandler deletes a local collection.
func (api *API) DeleteCollectionHandler(c *gin.Context) {
	if api.engine == nil {
		SendNotSupportedError(c, "Deleting collections")
		return
	}
	name := c.Param("collection")
	if validation := ValidateCollectionName("collection", name); validation.HasErrors() {
		SendValidationError(c, validation)
		return
	}

	if err := api.engine.DeleteCollection(name); err != nil {
		if errors.Is(err, internalErrors.ErrCollectionNotFound) {
			SendCollectionNotFoundError(c, name)
			return
		}
		SendInternalError(c, "delete collection", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Collection '" + strings.TrimSpace(name) + "' deleted"})
}
