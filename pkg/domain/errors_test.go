package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ValidationError{Kind: KindSample, Field: "name", Constraint: "required", Message: "missing"}, `field "name"`},
		{ValidationError{Kind: KindSample, Message: "bad shape"}, "bad shape"},
		{DuplicateNameError{Kind: KindSample, Name: "m_sample"}, `"m_sample" already exists`},
		{ImmutableFieldError{Kind: KindSample, Field: "name"}, "immutable"},
		{NotFoundError{Kind: KindSample, ID: "id-1"}, "not found"},
		{RevisionNotFoundError{ID: "id-1", Revision: 4}, "revision 4"},
		{ConflictError{ID: "id-1", Revision: 2}, "concurrent update"},
		{StorageError{Op: "put", Err: errors.New("disk full")}, "disk full"},
	}
	for _, tc := range cases {
		if !strings.Contains(tc.err.Error(), tc.want) {
			t.Errorf("%T message %q does not contain %q", tc.err, tc.err.Error(), tc.want)
		}
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := fmt.Errorf("query: %w", StorageError{Op: "query", Err: inner})
	if !errors.Is(err, inner) {
		t.Fatal("StorageError must unwrap to its cause")
	}
}

func TestConflictAndNotFoundPredicates(t *testing.T) {
	conflict := fmt.Errorf("wrapped: %w", ConflictError{ID: "id-1", Revision: 1})
	if !IsConflict(conflict) {
		t.Fatal("IsConflict missed a wrapped ConflictError")
	}
	if IsConflict(NotFoundError{Kind: KindSample, ID: "x"}) {
		t.Fatal("IsConflict matched a NotFoundError")
	}

	notFound := fmt.Errorf("wrapped: %w", NotFoundError{Kind: KindSample, ID: "x"})
	if !IsNotFound(notFound) {
		t.Fatal("IsNotFound missed a wrapped NotFoundError")
	}
	if IsNotFound(ConflictError{ID: "id-1"}) {
		t.Fatal("IsNotFound matched a ConflictError")
	}
}
