// Package domain defines the versioned document model, revision records,
// typed error kinds, and persistence contracts used by samplecore.
package domain

import (
	"time"
)

// Kind identifies the type of record stored in the catalog.
type Kind string

// Supported record kinds. The set is closed; schemas and revision buckets are
// keyed by these values.
const (
	// KindSample identifies a physical specimen record.
	KindSample Kind = "sample"
	// KindRequest identifies a work item referencing a sample.
	KindRequest Kind = "request"
	// KindContainer identifies a grouping of samples.
	KindContainer Kind = "container"
)

// Kinds returns all supported kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindSample, KindRequest, KindContainer}
}

// ValidKind reports whether k names a supported record kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindSample, KindRequest, KindContainer:
		return true
	}
	return false
}

// RequestState enumerates the workflow states of a request.
type RequestState string

// Canonical request states accepted by the request schema.
const (
	RequestStateActive   RequestState = "active"
	RequestStateInactive RequestState = "inactive"
)

// Fields is the kind-specific attribute set of a document. Keys are schema
// property names; values are JSON-compatible scalars, lists, or maps.
type Fields map[string]any

// Clone returns a deep copy of the field map. Nested maps and slices are
// copied one level deep, which covers every shape the kind schemas admit.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, inner := range tv {
			m[k] = cloneValue(inner)
		}
		return m
	case Fields:
		return map[string]any(tv.Clone())
	case []any:
		s := make([]any, len(tv))
		for i, inner := range tv {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), tv...)
	default:
		return tv
	}
}

// String returns the named field as a string, or "" when absent or mistyped.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Document is the fundamental unit stored by the catalog: a closed kind tag,
// server-assigned identity and revision counter, and a schema-validated
// attribute map.
type Document struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Revision  int       `json:"revision"`
	Fields    Fields    `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	cp := d
	cp.Fields = d.Fields.Clone()
	return cp
}

// Name returns the document's name field when the kind carries one.
func (d Document) Name() string { return d.Fields.String("name") }

// SampleRef returns the referenced sample id for request documents.
func (d Document) SampleRef() string { return d.Fields.String("sample") }

// Contents returns the sample-id to location mapping of a container document.
// Missing or mistyped contents yield an empty map.
func (d Document) Contents() map[string]string {
	out := map[string]string{}
	raw, ok := d.Fields["contents"].(map[string]any)
	if !ok {
		return out
	}
	for id, loc := range raw {
		if s, ok := loc.(string); ok {
			out[id] = s
		}
	}
	return out
}

// RevisionRecord is an immutable copy of a document's complete field set as it
// existed before a mutation, tagged with the revision number it superseded.
type RevisionRecord struct {
	DocumentID string    `json:"document_id"`
	Kind       Kind      `json:"kind"`
	Revision   int       `json:"revision"`
	Fields     Fields    `json:"fields"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Clone returns a deep copy of the record.
func (r RevisionRecord) Clone() RevisionRecord {
	cp := r
	cp.Fields = r.Fields.Clone()
	return cp
}

// metaFields are envelope fields that no caller may supply or change through
// the fields map.
var metaFields = map[string]struct{}{
	"id":       {},
	"revision": {},
}

// reservedFields are attribute names that would shadow the envelope for kinds
// whose schema does not declare them. A container's "kind" is its classifier
// attribute and stays an ordinary field.
var reservedFields = map[Kind]map[string]struct{}{
	KindSample:  {"kind": {}},
	KindRequest: {"kind": {}},
}

// readOnlyFields lists the kind-designated immutable attributes. A sample's
// name is fixed at creation so that name uniqueness stays meaningful.
var readOnlyFields = map[Kind]map[string]struct{}{
	KindSample: {"name": {}},
}

// ServerAssignedField reports whether the named field belongs to the server
// (identity, revision counter, or a shadowed envelope name) and may not be
// supplied at creation.
func ServerAssignedField(kind Kind, name string) bool {
	if _, ok := metaFields[name]; ok {
		return true
	}
	if reserved, ok := reservedFields[kind]; ok {
		if _, ok := reserved[name]; ok {
			return true
		}
	}
	return false
}

// ImmutableField reports whether the named field may not be changed on a
// document of the given kind.
func ImmutableField(kind Kind, name string) bool {
	if ServerAssignedField(kind, name) {
		return true
	}
	if ro, ok := readOnlyFields[kind]; ok {
		if _, ok := ro[name]; ok {
			return true
		}
	}
	return false
}
