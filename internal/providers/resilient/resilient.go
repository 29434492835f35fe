// Package resilient wraps a candidate provider with a per-request timeout and a bounded
// retry of transient failures.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// Policy bounds how long a query may take and how often it is retried.
type Policy struct {
	Attempts       int           // Total attempts; values below 1 mean 1
	InitialBackoff time.Duration // Delay before the first retry, doubled after each retry
	MaxBackoff     time.Duration // Upper bound for the delay
	Timeout        time.Duration // Per-attempt timeout; 0 disables it
}

// PolicyFromSettings builds a Policy from provider settings.
func PolicyFromSettings(settings config.ProviderSettings) Policy {
	settings.ApplyDefaults()
	return Policy{
		Attempts:       settings.RetryAttempts,
		InitialBackoff: settings.RetryInitialBackoff(),
		MaxBackoff:     settings.RetryMaxBackoff(),
		Timeout:        settings.Timeout(),
	}
}

// Provider decorates a CandidateProvider.
type Provider struct {
	inner  services.CandidateProvider
	policy Policy
	logger *slog.Logger
}

// Wrap returns inner decorated with policy.
func Wrap(inner services.CandidateProvider, policy Policy, logger *slog.Logger) *Provider {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{inner: inner, policy: policy, logger: logger}
}

// Query implements services.CandidateProvider.
// Only transient provider errors are retried; the last error is returned when attempts run out.
func (p *Provider) Query(ctx context.Context, query services.ProviderQuery) (*services.ProviderResponse, error) {
	delay := p.policy.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < p.policy.Attempts; attempt++ {
		response, err := p.attempt(ctx, query)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !internalErrors.IsTransient(err) || attempt == p.policy.Attempts-1 {
			break
		}

		p.logger.Debug("retrying candidate query",
			"collection", query.TargetCollection,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, internalErrors.NewProviderError(query.TargetCollection, "search", ctx.Err())
		}
		if next := delay * 2; next <= p.policy.MaxBackoff {
			delay = next
		}
	}

	return nil, lastErr
}

func (p *Provider) attempt(ctx context.Context, query services.ProviderQuery) (*services.ProviderResponse, error) {
	attemptCtx := ctx
	if p.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.policy.Timeout)
		defer cancel()
	}

	response, err := p.inner.Query(attemptCtx, query)
	if err == nil {
		return response, nil
	}

	// An attempt that ran out of its own time is transient; a cancelled parent is not.
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, internalErrors.NewTransientProviderError(query.TargetCollection, "search", context.DeadlineExceeded)
	}
	if ctx.Err() != nil {
		return nil, internalErrors.NewProviderError(query.TargetCollection, "search", ctx.Err())
	}

	var providerErr *internalErrors.ProviderError
	if errors.As(err, &providerErr) {
		return nil, err
	}
	return nil, internalErrors.NewProviderError(query.TargetCollection, "search", err)
}
