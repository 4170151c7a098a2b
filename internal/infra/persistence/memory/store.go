// Package memory provides the in-memory reference implementation of the
// primary and revision stores. It is the backend used by tests and by
// deployments that do not need durability.
package memory

import (
	"context"
	"sync"
	"time"

	"samplecore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Store         = (*Store)(nil)
	_ domain.PrimaryStore  = (*Store)(nil)
	_ domain.RevisionStore = (*Store)(nil)
)

// Store keeps live documents and revision records in process memory. All
// access is serialized through a single RWMutex; values are cloned on the way
// in and out so callers can never alias internal state.
type Store struct {
	mu    sync.RWMutex
	docs  map[domain.Kind]map[string]domain.Document
	revs  map[domain.Kind]map[string]map[int]domain.RevisionRecord
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	s := &Store{
		docs:  make(map[domain.Kind]map[string]domain.Document),
		revs:  make(map[domain.Kind]map[string]map[int]domain.RevisionRecord),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, kind := range domain.Kinds() {
		s.docs[kind] = make(map[string]domain.Document)
		s.revs[kind] = make(map[string]map[int]domain.RevisionRecord)
	}
	return s
}

// SetClock overrides the time source used for update timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// Primary returns the live-document store.
func (s *Store) Primary() domain.PrimaryStore { return s }

// Revisions returns the revision log.
func (s *Store) Revisions() domain.RevisionStore { return s }

// Get returns the live document for the id.
func (s *Store) Get(_ context.Context, kind domain.Kind, id string) (domain.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[kind][id]
	if !ok {
		return domain.Document{}, false, nil
	}
	return doc.Clone(), true, nil
}

// Put inserts or replaces a document.
func (s *Store) Put(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[doc.Kind] == nil {
		s.docs[doc.Kind] = make(map[string]domain.Document)
	}
	s.docs[doc.Kind][doc.ID] = doc.Clone()
	return nil
}

// Query returns every document of the kind matching the filter.
func (s *Store) Query(_ context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.docs[kind]))
	for _, doc := range s.docs[kind] {
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// UpdateFields applies the changes and increments the revision counter in one
// atomic step under the store lock.
func (s *Store) UpdateFields(_ context.Context, kind domain.Kind, id string, changes domain.Fields) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[kind][id]
	if !ok {
		return domain.Document{}, domain.NotFoundError{Kind: kind, ID: id}
	}
	updated := doc.Clone()
	for name, value := range changes {
		updated.Fields[name] = value
	}
	updated.Revision++
	updated.UpdatedAt = s.nowFn()
	s.docs[kind][id] = updated
	return updated.Clone(), nil
}

// Delete removes a document.
func (s *Store) Delete(_ context.Context, kind domain.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[kind][id]; !ok {
		return domain.NotFoundError{Kind: kind, ID: id}
	}
	delete(s.docs[kind], id)
	return nil
}

// Append records a pre-mutation snapshot. A record already present at the
// (document id, revision) key is a concurrent-update race and is rejected.
func (s *Store) Append(_ context.Context, record domain.RevisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.revs[record.Kind]
	if byID == nil {
		byID = make(map[string]map[int]domain.RevisionRecord)
		s.revs[record.Kind] = byID
	}
	if byID[record.DocumentID] == nil {
		byID[record.DocumentID] = make(map[int]domain.RevisionRecord)
	}
	if _, exists := byID[record.DocumentID][record.Revision]; exists {
		return domain.ConflictError{ID: record.DocumentID, Revision: record.Revision}
	}
	byID[record.DocumentID][record.Revision] = record.Clone()
	return nil
}

// History returns all records for the id, revision descending.
func (s *Store) History(_ context.Context, kind domain.Kind, id string) ([]domain.RevisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byRev := s.revs[kind][id]
	out := make([]domain.RevisionRecord, 0, len(byRev))
	for rev := highestRevision(byRev); rev >= 0; rev-- {
		if rec, ok := byRev[rev]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func highestRevision(byRev map[int]domain.RevisionRecord) int {
	highest := -1
	for rev := range byRev {
		if rev > highest {
			highest = rev
		}
	}
	return highest
}

// Remove deletes a single revision record.
func (s *Store) Remove(_ context.Context, kind domain.Kind, id string, revision int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRev := s.revs[kind][id]
	if byRev == nil {
		return nil
	}
	delete(byRev, revision)
	if len(byRev) == 0 {
		delete(s.revs[kind], id)
	}
	return nil
}
