// Package identity assigns globally unique identifiers to new documents.
package identity

import "github.com/google/uuid"

// Allocator produces opaque unique identifiers. The zero value is not usable;
// construct with NewAllocator.
type Allocator struct {
	newID func() string
}

// NewAllocator returns an allocator backed by random 128-bit UUIDs.
func NewAllocator() *Allocator {
	return &Allocator{newID: func() string { return uuid.NewString() }}
}

// NewSequenceAllocator returns an allocator that yields the given ids in
// order, then falls back to random ids. Intended for tests that need stable
// identities.
func NewSequenceAllocator(ids ...string) *Allocator {
	queue := append([]string(nil), ids...)
	return &Allocator{newID: func() string {
		if len(queue) == 0 {
			return uuid.NewString()
		}
		id := queue[0]
		queue = queue[1:]
		return id
	}}
}

// Allocate returns a fresh identifier. It never fails; entropy exhaustion is
// treated as a programming-environment fault by the underlying library.
func (a *Allocator) Allocate() string {
	return a.newID()
}
