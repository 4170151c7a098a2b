package core

import (
	"context"

	"samplecore/pkg/domain"
)

// Collection is a per-kind façade over the document manager. It carries no
// state beyond the bound kind.
type Collection struct {
	svc  *Service
	kind domain.Kind
}

// Collection returns an accessor bound to the given kind.
func (s *Service) Collection(kind domain.Kind) *Collection {
	return &Collection{svc: s, kind: kind}
}

// Samples returns the sample accessor.
func (s *Service) Samples() *Collection { return s.Collection(domain.KindSample) }

// Requests returns the request accessor.
func (s *Service) Requests() *Collection { return s.Collection(domain.KindRequest) }

// Containers returns the container accessor.
func (s *Service) Containers() *Collection { return s.Collection(domain.KindContainer) }

// Kind returns the bound kind.
func (c *Collection) Kind() domain.Kind { return c.kind }

// New creates a document of the bound kind.
func (c *Collection) New(ctx context.Context, fields domain.Fields) (domain.Document, error) {
	return c.svc.Create(ctx, c.kind, fields)
}

// Get returns the live document for the id.
func (c *Collection) Get(ctx context.Context, id string) (domain.Document, error) {
	return c.svc.Get(ctx, c.kind, id)
}

// Find returns every live document matching the filter.
func (c *Collection) Find(ctx context.Context, filter domain.Filter) ([]domain.Document, error) {
	return c.svc.Find(ctx, c.kind, filter)
}

// FindOne returns a single matching document or NotFoundError.
func (c *Collection) FindOne(ctx context.Context, filter domain.Filter) (domain.Document, error) {
	return c.svc.FindOne(ctx, c.kind, filter)
}

// Update applies a partial field change.
func (c *Collection) Update(ctx context.Context, id string, changes domain.Fields) (domain.Document, error) {
	return c.svc.Update(ctx, c.kind, id, changes)
}

// Revisions returns historical snapshots, most recent first.
func (c *Collection) Revisions(ctx context.Context, id string) ([]domain.Document, error) {
	return c.svc.Revisions(ctx, c.kind, id)
}

// Revert re-applies a historical revision as a new mutation.
func (c *Collection) Revert(ctx context.Context, id string, revision int) (domain.Document, error) {
	return c.svc.Revert(ctx, c.kind, id, revision)
}

// Copy creates a fresh document (new identity, revision zero) from an
// existing document's fields merged with the given overrides. Overriding the
// name is required for kinds with unique names.
func (c *Collection) Copy(ctx context.Context, id string, overrides domain.Fields) (domain.Document, error) {
	src, err := c.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	fields := src.Fields.Clone()
	for name, value := range overrides {
		fields[name] = value
	}
	return c.New(ctx, fields)
}

// Purge removes the document and its history.
func (c *Collection) Purge(ctx context.Context, id string) error {
	return c.svc.Purge(ctx, c.kind, id)
}
