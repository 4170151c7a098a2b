package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"samplecore/internal/identity"
	"samplecore/internal/infra/persistence/memory"
	"samplecore/internal/schema"
	"samplecore/pkg/domain"
)

// conflictingStore rejects the first n history appends with ConflictError,
// simulating concurrent writers winning the snapshot race.
type conflictingStore struct {
	*memory.Store
	conflicts int
	appends   int
}

func (c *conflictingStore) Revisions() domain.RevisionStore { return c }

func (c *conflictingStore) Append(ctx context.Context, record domain.RevisionRecord) error {
	c.appends++
	if c.conflicts > 0 {
		c.conflicts--
		return domain.ConflictError{ID: record.DocumentID, Revision: record.Revision}
	}
	return c.Store.Append(ctx, record)
}

func TestUpdateWithRetryRecoversFromConflicts(t *testing.T) {
	store := &conflictingStore{Store: memory.NewStore(), conflicts: 2}
	svc := NewService(store, schema.MustLoad(), WithIdentity(identity.NewSequenceAllocator("id-1")))
	ctx := context.Background()

	doc := mustCreateSample(t, svc, "m_sample", domain.Fields{"counter": 0})

	updated, err := svc.UpdateWithRetry(ctx, domain.KindSample, doc.ID, func(current domain.Document) (domain.Fields, error) {
		n, _ := current.Fields["counter"].(int)
		return domain.Fields{"counter": n + 1}, nil
	})
	if err != nil {
		t.Fatalf("update with retry: %v", err)
	}
	if updated.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", updated.Revision)
	}
	if store.appends != 3 {
		t.Fatalf("expected 3 append attempts (2 conflicts, 1 success), got %d", store.appends)
	}
}

func TestUpdateWithRetryStopsOnPermanentErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := mustCreateSample(t, svc, "m_sample", nil)

	computeErr := errors.New("compute failed")
	_, err := svc.UpdateWithRetry(ctx, domain.KindSample, doc.ID, func(domain.Document) (domain.Fields, error) {
		return nil, computeErr
	})
	if !errors.Is(err, computeErr) {
		t.Fatalf("expected compute error surfaced unwrapped, got %v", err)
	}

	_, err = svc.UpdateWithRetry(ctx, domain.KindSample, "missing", func(domain.Document) (domain.Fields, error) {
		return domain.Fields{"owner": "x"}, nil
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError without retries, got %v", err)
	}
}

func TestUpdateWithRetryHonorsContextCancellation(t *testing.T) {
	store := &conflictingStore{Store: memory.NewStore(), conflicts: 1 << 30}
	svc := NewService(store, schema.MustLoad(), WithIdentity(identity.NewSequenceAllocator("id-1")))

	doc := mustCreateSample(t, svc, "m_sample", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.UpdateWithRetry(ctx, domain.KindSample, doc.ID, func(domain.Document) (domain.Fields, error) {
		return domain.Fields{"owner": "x"}, nil
	})
	if err == nil {
		t.Fatal("expected error when context expires during retries")
	}
}
