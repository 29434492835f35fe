package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// buildBatchSize is the number of documents indexed between progress reports and cancellation checks.
const buildBatchSize = 500

// BuildCollection indexes docs into a new collection named settings.Name, replacing any existing
// collection of that name once the build succeeds. progress, when set, is called after each batch.
func (e *Engine) BuildCollection(ctx context.Context, settings config.CollectionSettings, docs []model.TargetDocument, progress func(done, total int)) error {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return internalErrors.NewValidationError("collection", err.Error())
	}

	collection, err := NewCollection(settings)
	if err != nil {
		return fmt.Errorf("failed to create collection '%s': %w", settings.Name, err)
	}

	if err := collection.AddDocumentsInBatches(ctx, docs, buildBatchSize, progress); err != nil {
		return fmt.Errorf("failed to build collection '%s': %w", settings.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.persistCollectionUnsafe(settings.Name, collection); err != nil {
		return fmt.Errorf("failed to persist collection '%s': %w", settings.Name, err)
	}
	_, replaced := e.collections[settings.Name]
	e.collections[settings.Name] = collection
	e.notifyChangeUnsafe(settings.Name)
	e.logger.Info("collection built", "collection", settings.Name, "documents", collection.DocumentCount(), "replaced", replaced)
	return nil
}

// BuildCollectionAsync runs BuildCollection as a background job and returns the job ID.
func (e *Engine) BuildCollectionAsync(settings config.CollectionSettings, docs []model.TargetDocument) (string, error) {
	if e.jobManager == nil {
		return "", fmt.Errorf("background builds are not enabled")
	}
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return "", internalErrors.NewValidationError("collection", err.Error())
	}

	jobID := e.jobManager.CreateJob(model.JobTypeBuildIndex, settings.Name, map[string]string{
		"operation":      "build_index",
		"document_count": strconv.Itoa(len(docs)),
	})

	err := e.jobManager.ExecuteJob(jobID, func(ctx context.Context, _ *model.Job) error {
		e.jobManager.UpdateJobProgress(jobID, 0, len(docs), "Starting collection build")
		return e.BuildCollection(ctx, settings, docs, func(done, total int) {
			e.jobManager.UpdateJobProgress(jobID, done, total, fmt.Sprintf("Indexed %d of %d documents", done, total))
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to start build job: %w", err)
	}

	return jobID, nil
}
