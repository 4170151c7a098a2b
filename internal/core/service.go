// Package core implements the document manager: creation, mediated partial
// updates with an append-only revision log, history reconstruction, and
// reversion to prior revisions.
package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"samplecore/internal/identity"
	"samplecore/internal/schema"
	"samplecore/pkg/domain"
)

// Service orchestrates document lifecycle against a primary store and a
// revision store. Every mutation is preceded by a snapshot append and an
// atomic revision increment; the service holds no document state of its own
// and re-reads the store on every operation.
type Service struct {
	store   domain.Store
	schemas *schema.Registry
	ids     *identity.Allocator
	logger  Logger
	metrics MetricsRecorder
	nowFn   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithIdentity overrides the identity allocator.
func WithIdentity(a *identity.Allocator) Option {
	return func(s *Service) {
		if a != nil {
			s.ids = a
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService constructs a document manager over the given store and schema
// registry.
func NewService(store domain.Store, schemas *schema.Registry, opts ...Option) *Service {
	s := &Service{
		store:   store,
		schemas: schemas,
		ids:     identity.NewAllocator(),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) primary() domain.PrimaryStore    { return s.store.Primary() }
func (s *Service) revisions() domain.RevisionStore { return s.store.Revisions() }

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
}

// Create validates the field set, enforces sample-name uniqueness and
// referential soundness, assigns identity, and persists the document at
// revision zero. Either the document exists with revision 0 and no history
// entries, or it does not exist at all.
func (s *Service) Create(ctx context.Context, kind domain.Kind, fields domain.Fields) (doc domain.Document, err error) {
	defer func(start time.Time) { s.observe(ctx, "create", start, err) }(s.nowFn())

	if !domain.ValidKind(kind) {
		return domain.Document{}, domain.ValidationError{Kind: kind, Constraint: "kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	fields = fields.Clone()
	if fields == nil {
		fields = domain.Fields{}
	}
	for name := range fields {
		if domain.ServerAssignedField(kind, name) {
			return domain.Document{}, domain.ValidationError{Kind: kind, Field: name, Constraint: "server-assigned",
				Message: "field is assigned by the server and may not be supplied"}
		}
	}
	applyDefaults(kind, fields)
	if err = s.schemas.Validate(kind, fields); err != nil {
		return domain.Document{}, err
	}
	if kind == domain.KindSample {
		name := fields.String("name")
		existing, qerr := s.primary().Query(ctx, kind, domain.Filter{"name": name})
		if qerr != nil {
			return domain.Document{}, qerr
		}
		if len(existing) > 0 {
			return domain.Document{}, domain.DuplicateNameError{Kind: kind, Name: name}
		}
	}
	if err = s.checkReferences(ctx, kind, fields); err != nil {
		return domain.Document{}, err
	}

	now := s.nowFn()
	doc = domain.Document{
		ID:        s.ids.Allocate(),
		Kind:      kind,
		Revision:  0,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.primary().Put(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	s.logger.Debug("document created", "kind", kind, "id", doc.ID)
	return doc, nil
}

func applyDefaults(kind domain.Kind, fields domain.Fields) {
	if kind == domain.KindRequest {
		if _, ok := fields["state"]; !ok {
			fields["state"] = string(domain.RequestStateActive)
		}
	}
	if kind == domain.KindContainer {
		if _, ok := fields["contents"]; !ok {
			fields["contents"] = map[string]any{}
		}
	}
}

// checkReferences verifies at write time that request.sample and every key of
// container.contents name a live document of the referenced kind.
func (s *Service) checkReferences(ctx context.Context, kind domain.Kind, fields domain.Fields) error {
	switch kind {
	case domain.KindRequest:
		sampleID, ok := fields["sample"].(string)
		if !ok || sampleID == "" {
			return nil // presence and type are the schema's concern
		}
		if _, found, err := s.primary().Get(ctx, domain.KindSample, sampleID); err != nil {
			return err
		} else if !found {
			return domain.NotFoundError{Kind: domain.KindSample, ID: sampleID}
		}
	case domain.KindContainer:
		contents, ok := fields["contents"].(map[string]any)
		if !ok {
			return nil
		}
		ids := make([]string, 0, len(contents))
		for sampleID := range contents {
			ids = append(ids, sampleID)
		}
		sort.Strings(ids)
		for _, sampleID := range ids {
			if _, found, err := s.primary().Get(ctx, domain.KindSample, sampleID); err != nil {
				return err
			} else if !found {
				return domain.NotFoundError{Kind: domain.KindSample, ID: sampleID}
			}
		}
	}
	return nil
}

// Get returns the live document for the id.
func (s *Service) Get(ctx context.Context, kind domain.Kind, id string) (domain.Document, error) {
	doc, found, err := s.primary().Get(ctx, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !found {
		return domain.Document{}, domain.NotFoundError{Kind: kind, ID: id}
	}
	return doc, nil
}

// Find returns every live document of the kind matching the filter. Pure
// read; no ordering guarantee.
func (s *Service) Find(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Document, error) {
	if !domain.ValidKind(kind) {
		return nil, domain.ValidationError{Kind: kind, Constraint: "kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	return s.primary().Query(ctx, kind, filter)
}

// FindOne returns a single matching document, preferring the lowest id for
// determinism, or NotFoundError when nothing matches.
func (s *Service) FindOne(ctx context.Context, kind domain.Kind, filter domain.Filter) (domain.Document, error) {
	docs, err := s.Find(ctx, kind, filter)
	if err != nil {
		return domain.Document{}, err
	}
	if len(docs) == 0 {
		return domain.Document{}, domain.NotFoundError{Kind: kind}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs[0], nil
}

// Update applies a partial field change to the document. The complete prior
// field set is appended to the revision log at the current revision number
// before the mutation lands; if that append fails nothing changes
// (fail-closed). A duplicate append key surfaces as ConflictError and means a
// concurrent update won the race; callers re-read and retry.
func (s *Service) Update(ctx context.Context, kind domain.Kind, id string, changes domain.Fields) (doc domain.Document, err error) {
	defer func(start time.Time) { s.observe(ctx, "update", start, err) }(s.nowFn())

	if len(changes) == 0 {
		return domain.Document{}, domain.ValidationError{Kind: kind, Constraint: "changes", Message: "no field changes supplied"}
	}
	for name := range changes {
		if domain.ImmutableField(kind, name) {
			return domain.Document{}, domain.ImmutableFieldError{Kind: kind, Field: name}
		}
	}

	current, found, err := s.primary().Get(ctx, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !found {
		return domain.Document{}, domain.NotFoundError{Kind: kind, ID: id}
	}

	merged := current.Fields.Clone()
	for name, value := range changes {
		merged[name] = value
	}
	if err = s.schemas.Validate(kind, merged); err != nil {
		return domain.Document{}, err
	}
	if err = s.checkReferences(ctx, kind, changes.Clone()); err != nil {
		return domain.Document{}, err
	}

	snapshot := domain.RevisionRecord{
		DocumentID: current.ID,
		Kind:       kind,
		Revision:   current.Revision,
		Fields:     current.Fields.Clone(),
		RecordedAt: s.nowFn(),
	}
	if err = s.revisions().Append(ctx, snapshot); err != nil {
		return domain.Document{}, err
	}

	doc, err = s.primary().UpdateFields(ctx, kind, id, changes.Clone())
	if err != nil {
		// The snapshot at the current revision was durably recorded but the
		// mutation did not land. The document is unchanged; the stray row is
		// swept by ReconcileOrphans.
		s.logger.Warn("mutation failed after history write; orphan revision row left behind",
			"kind", kind, "id", id, "revision", current.Revision, "error", err)
		return domain.Document{}, err
	}
	s.logger.Debug("document updated", "kind", kind, "id", id, "revision", doc.Revision)
	return doc, nil
}

// Revisions reconstructs historical document snapshots for the id, most
// recent first, restoring the identity and historical revision number onto
// each raw snapshot.
func (s *Service) Revisions(ctx context.Context, kind domain.Kind, id string) ([]domain.Document, error) {
	records, err := s.revisions().History(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, domain.Document{
			ID:        rec.DocumentID,
			Kind:      rec.Kind,
			Revision:  rec.Revision,
			Fields:    rec.Fields.Clone(),
			UpdatedAt: rec.RecordedAt,
		})
	}
	return docs, nil
}

// Revert re-applies the non-immutable fields of a historical revision through
// the normal update path. Reverting is itself a recorded mutation: it appends
// one new revision record and moves the revision counter forward.
func (s *Service) Revert(ctx context.Context, kind domain.Kind, id string, targetRevision int) (doc domain.Document, err error) {
	defer func(start time.Time) { s.observe(ctx, "revert", start, err) }(s.nowFn())

	history, err := s.Revisions(ctx, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	var target *domain.Document
	for i := range history {
		if history[i].Revision == targetRevision {
			target = &history[i]
			break
		}
	}
	if target == nil {
		return domain.Document{}, domain.RevisionNotFoundError{ID: id, Revision: targetRevision}
	}

	changes := domain.Fields{}
	for name, value := range target.Fields {
		if !domain.ImmutableField(kind, name) {
			changes[name] = value
		}
	}
	return s.Update(ctx, kind, id, changes)
}

// Purge removes a document and its entire revision history. Administrative
// escape hatch outside the versioning invariants; there is no undo.
func (s *Service) Purge(ctx context.Context, kind domain.Kind, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "purge", start, err) }(s.nowFn())

	if _, err = s.Get(ctx, kind, id); err != nil {
		return err
	}
	records, err := s.revisions().History(ctx, kind, id)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err = s.revisions().Remove(ctx, kind, id, rec.Revision); err != nil {
			return err
		}
	}
	if err = s.primary().Delete(ctx, kind, id); err != nil {
		return err
	}
	s.logger.Info("document purged", "kind", kind, "id", id, "revisions_removed", len(records))
	return nil
}

// ReconcileOrphans deletes revision records whose revision number was never
// superseded: rows left behind when a history append succeeded but the
// following mutation failed. Returns the number of records removed.
func (s *Service) ReconcileOrphans(ctx context.Context, kind domain.Kind) (int, error) {
	docs, err := s.primary().Query(ctx, kind, nil)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range docs {
		records, err := s.revisions().History(ctx, kind, doc.ID)
		if err != nil {
			return removed, err
		}
		for _, rec := range records {
			if rec.Revision < doc.Revision {
				continue
			}
			if err := s.revisions().Remove(ctx, kind, doc.ID, rec.Revision); err != nil {
				return removed, err
			}
			removed++
			s.logger.Warn("orphan revision record removed",
				"kind", kind, "id", doc.ID, "revision", rec.Revision)
		}
	}
	return removed, nil
}
