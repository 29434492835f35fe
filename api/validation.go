// Package api provides validation utilities for API request handling.
package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"
)

// maxOriginsPerRequest bounds the batch size accepted by the collection match endpoint.
const maxOriginsPerRequest = 100000

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidateCollectionName validates a target collection name
func ValidateCollectionName(field, name string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if name == "" {
		result.AddError(field, "Collection name is required")
		return result
	}

	if strings.TrimSpace(name) != name {
		result.AddError(field, "Collection name cannot have leading or trailing whitespace")
		return result
	}

	return result
}

// ValidateTitle validates an origin title used as a query
func ValidateTitle(field, title string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(title) == "" {
		result.AddError(field, "Title cannot be empty or whitespace-only")
	}

	return result
}

// ValidateOriginEntries validates the rows of a collection match request.
// Duplicate identifiers are left to the matcher's duplicate policy.
func ValidateOriginEntries(entries []model.OriginEntry) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(entries) == 0 {
		result.AddError("origins", "No origin documents provided")
		return result
	}
	if len(entries) > maxOriginsPerRequest {
		result.AddError("origins", fmt.Sprintf("At most %d origin documents can be matched per request", maxOriginsPerRequest))
		return result
	}

	for i, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" {
			result.AddError(fmt.Sprintf("origins[%d].id", i), "Origin ID cannot be empty or whitespace-only")
			continue
		}
		if strings.TrimSpace(entry.Title) == "" {
			result.AddError(fmt.Sprintf("origins[%d].title", i), "Origin title cannot be empty or whitespace-only")
		}
	}

	return result
}

// ValidateMatchSettings validates scorer thresholds supplied with a request
func ValidateMatchSettings(settings *config.MatchSettings) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if settings == nil {
		return result
	}

	settings.ApplyDefaults()
	for _, problem := range settings.Validate() {
		result.AddError("match_settings", problem)
	}

	return result
}

// ValidateCollectionSettings validates the settings of a collection to build
func ValidateCollectionSettings(settings *config.CollectionSettings) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if settings == nil {
		result.AddError("settings", "Collection settings are required")
		return result
	}

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		result.AddError("settings", err.Error())
	}

	return result
}

// ValidateTargetDocuments validates documents for a collection build
func ValidateTargetDocuments(docs []model.TargetDocument, idField string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(docs) == 0 {
		result.AddError("documents", "No documents provided")
		return result
	}

	for i, doc := range docs {
		id, ok := doc.Get(idField)
		if !ok || strings.TrimSpace(id) == "" {
			result.AddError(fmt.Sprintf("documents[%d].%s", i, idField), "Document must have a non-empty '"+idField+"' field")
		}
	}

	return result
}

// ValidateLimit validates a list limit, applying the default and the maximum
func ValidateLimit(limit int) (int, *ValidationResult) {
	result := &ValidationResult{Valid: true}

	if limit < 0 {
		result.AddError("limit", "Limit cannot be negative")
		return limit, result
	}
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return limit, result
}

// SendValidationError sends a standardized validation error response
func SendValidationError(c *gin.Context, result *ValidationResult) {
	SendStructuredValidationError(c, result)
}

// ValidateJSONBinding validates JSON binding and returns a standardized error
func ValidateJSONBinding(c *gin.Context, target interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if err := c.ShouldBindJSON(target); err != nil {
		result.AddError("request_body", "Invalid request body: "+err.Error())
	}

	return result
}
