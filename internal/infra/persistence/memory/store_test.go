package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"samplecore/pkg/domain"
)

func sampleDoc(id, name string) domain.Document {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Document{
		ID:        id,
		Kind:      domain.KindSample,
		Revision:  0,
		Fields:    domain.Fields{"name": name, "owner": "arkilic"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	doc := sampleDoc("id-1", "m_sample")

	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, domain.KindSample, "id-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Fields.String("name") != "m_sample" {
		t.Fatalf("unexpected document: %v", got.Fields)
	}

	_, ok, err = s.Get(ctx, domain.KindSample, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unknown id")
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Put(ctx, sampleDoc("id-1", "m_sample")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, _, _ := s.Get(ctx, domain.KindSample, "id-1")
	got.Fields["owner"] = "mutated"

	again, _, _ := s.Get(ctx, domain.KindSample, "id-1")
	if again.Fields.String("owner") != "arkilic" {
		t.Fatal("store state aliased by a returned document")
	}
}

func TestQueryFilters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, d := range []domain.Document{
		sampleDoc("id-1", "alpha"),
		sampleDoc("id-2", "beta"),
	} {
		if err := s.Put(ctx, d); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	all, err := s.Query(ctx, domain.KindSample, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(all))
	}

	named, err := s.Query(ctx, domain.KindSample, domain.Filter{"name": "beta"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(named) != 1 || named[0].ID != "id-2" {
		t.Fatalf("expected id-2 only, got %v", named)
	}

	none, err := s.Query(ctx, domain.KindRequest, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no requests, got %d", len(none))
	}
}

func TestUpdateFieldsIncrementsRevision(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	ctx := context.Background()
	if err := s.Put(ctx, sampleDoc("id-1", "m_sample")); err != nil {
		t.Fatalf("put: %v", err)
	}

	updated, err := s.UpdateFields(ctx, domain.KindSample, "id-1", domain.Fields{"owner": "second"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", updated.Revision)
	}
	if updated.Fields.String("owner") != "second" {
		t.Fatalf("change not applied: %v", updated.Fields)
	}
	if !updated.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected updated_at %v, got %v", fixed, updated.UpdatedAt)
	}

	_, err = s.UpdateFields(ctx, domain.KindSample, "missing", domain.Fields{"owner": "x"})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Put(ctx, sampleDoc("id-1", "m_sample")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, domain.KindSample, "id-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, domain.KindSample, "id-1"); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError on double delete, got %v", err)
	}
}

func record(id string, rev int, owner string) domain.RevisionRecord {
	return domain.RevisionRecord{
		DocumentID: id,
		Kind:       domain.KindSample,
		Revision:   rev,
		Fields:     domain.Fields{"name": "m_sample", "owner": owner},
		RecordedAt: time.Now().UTC(),
	}
}

func TestAppendRejectsDuplicateRevision(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Append(ctx, record("id-1", 0, "first")); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := s.Append(ctx, record("id-1", 0, "second"))
	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ID != "id-1" || conflict.Revision != 0 {
		t.Fatalf("conflict carries wrong key: %+v", conflict)
	}

	// The original record survives the rejected append.
	history, err := s.History(ctx, domain.KindSample, "id-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Fields.String("owner") != "first" {
		t.Fatalf("winning record lost: %v", history)
	}
}

func TestHistoryOrderedDescending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for rev := 0; rev < 4; rev++ {
		if err := s.Append(ctx, record("id-1", rev, "o")); err != nil {
			t.Fatalf("append %d: %v", rev, err)
		}
	}

	history, err := s.History(ctx, domain.KindSample, "id-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 records, got %d", len(history))
	}
	for i, rec := range history {
		if rec.Revision != 3-i {
			t.Fatalf("history[%d] revision %d, want %d", i, rec.Revision, 3-i)
		}
	}

	empty, err := s.History(ctx, domain.KindSample, "unknown")
	if err != nil {
		t.Fatalf("history unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history, got %d", len(empty))
	}
}

func TestRemoveRevision(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Append(ctx, record("id-1", 0, "o")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Remove(ctx, domain.KindSample, "id-1", 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an absent record is a no-op.
	if err := s.Remove(ctx, domain.KindSample, "id-1", 0); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	history, _ := s.History(ctx, domain.KindSample, "id-1")
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}

func TestConcurrentAppendsSingleWinner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	const writers = 16

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Append(ctx, record("id-1", 0, "o"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !domain.IsConflict(err) {
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning append, got %d", winners)
	}
}
