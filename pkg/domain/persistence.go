package domain

import "context"

// Filter selects documents by exact field equality. The keys "id" and
// "revision" match the document envelope; any other key matches an attribute.
// A nil or empty filter matches every document of the kind.
type Filter map[string]any

// Matches reports whether the document satisfies every clause of the filter.
func (f Filter) Matches(doc Document) bool {
	for key, want := range f {
		switch key {
		case "id":
			if doc.ID != want {
				return false
			}
		case "revision":
			if !numericEqual(doc.Revision, want) {
				return false
			}
		default:
			got, ok := doc.Fields[key]
			if !ok || !looseEqual(got, want) {
				return false
			}
		}
	}
	return true
}

func numericEqual(rev int, want any) bool {
	switch w := want.(type) {
	case int:
		return rev == w
	case int64:
		return int64(rev) == w
	case float64:
		return float64(rev) == w
	}
	return false
}

// looseEqual compares stored values against filter values, tolerating the
// int/float asymmetry introduced by JSON decoding.
func looseEqual(got, want any) bool {
	if got == want {
		return true
	}
	gf, gok := asFloat(got)
	wf, wok := asFloat(want)
	return gok && wok && gf == wf
}

func asFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}

// PrimaryStore is the contract the document manager consumes for live
// documents. Implementations must be safe for concurrent use.
type PrimaryStore interface {
	// Get returns the live document, or ok=false when the id is unknown.
	Get(ctx context.Context, kind Kind, id string) (Document, bool, error)
	// Put inserts or replaces a document.
	Put(ctx context.Context, doc Document) error
	// Query returns every live document of the kind matching the filter.
	Query(ctx context.Context, kind Kind, filter Filter) ([]Document, error)
	// UpdateFields applies the field changes and increments the revision
	// counter by one in a single atomic step, returning the updated document.
	UpdateFields(ctx context.Context, kind Kind, id string, changes Fields) (Document, error)
	// Delete removes a document. Used only by the administrative purge path.
	Delete(ctx context.Context, kind Kind, id string) error
}

// RevisionStore is the append-only log of historical document versions.
// Records are keyed by (document id, revision); a duplicate Append must be
// rejected with ConflictError so a snapshot race is never silent.
type RevisionStore interface {
	Append(ctx context.Context, record RevisionRecord) error
	// History returns all records for the id ordered by revision descending.
	// An unknown id yields an empty slice, not an error.
	History(ctx context.Context, kind Kind, id string) ([]RevisionRecord, error)
	// Remove deletes a single record. Used by the orphan reconciler and the
	// purge path; never by update.
	Remove(ctx context.Context, kind Kind, id string, revision int) error
}

// Store bundles the primary and revision stores a backend provides.
type Store interface {
	Primary() PrimaryStore
	Revisions() RevisionStore
}
