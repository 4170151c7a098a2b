package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"samplecore/pkg/domain"
)

// UpdateWithRetry re-reads the document, recomputes the field changes, and
// resubmits the update whenever a concurrent writer wins the snapshot race.
// Only ConflictError is retried; every other error is returned immediately.
// The compute function receives the freshly read document and returns the
// changes to apply.
func (s *Service) UpdateWithRetry(ctx context.Context, kind domain.Kind, id string, compute func(domain.Document) (domain.Fields, error)) (domain.Document, error) {
	var updated domain.Document

	attempt := func() error {
		current, err := s.Get(ctx, kind, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		changes, err := compute(current)
		if err != nil {
			return backoff.Permanent(err)
		}
		updated, err = s.Update(ctx, kind, id, changes)
		if err == nil {
			return nil
		}
		if domain.IsConflict(err) {
			s.logger.Debug("update conflict, retrying", "kind", kind, "id", id)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return domain.Document{}, err
	}
	return updated, nil
}
