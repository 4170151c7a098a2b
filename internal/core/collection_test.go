package core

import (
	"context"
	"errors"
	"testing"

	"samplecore/pkg/domain"
)

func TestCollectionBindsKind(t *testing.T) {
	svc, _ := newTestService(t)
	if got := svc.Samples().Kind(); got != domain.KindSample {
		t.Fatalf("expected sample collection, got %q", got)
	}
	if got := svc.Requests().Kind(); got != domain.KindRequest {
		t.Fatalf("expected request collection, got %q", got)
	}
	if got := svc.Containers().Kind(); got != domain.KindContainer {
		t.Fatalf("expected container collection, got %q", got)
	}
}

func TestCollectionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	samples := svc.Samples()

	doc, err := samples.New(ctx, domain.Fields{"name": "m_sample", "owner": "arkilic"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := samples.Update(ctx, doc.ID, domain.Fields{"owner": "second"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	reverted, err := samples.Revert(ctx, doc.ID, 0)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Fields.String("owner") != "arkilic" {
		t.Fatalf("expected owner restored, got %q", reverted.Fields.String("owner"))
	}
	history, err := samples.Revisions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if err := samples.Purge(ctx, doc.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := samples.Get(ctx, doc.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError after purge, got %v", err)
	}
}

func TestCollectionCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	samples := svc.Samples()

	src, err := samples.New(ctx, domain.Fields{"name": "m_sample", "owner": "arkilic", "project": "trial"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cp, err := samples.Copy(ctx, src.ID, domain.Fields{"name": "m_sample_copy"})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if cp.ID == src.ID {
		t.Fatal("copy must receive fresh identity")
	}
	if cp.Revision != 0 {
		t.Fatalf("copy must start at revision 0, got %d", cp.Revision)
	}
	if cp.Fields.String("owner") != "arkilic" || cp.Fields.String("project") != "trial" {
		t.Fatalf("copy lost source fields: %v", cp.Fields)
	}

	// Copying without renaming collides with the source's unique name.
	_, err = samples.Copy(ctx, src.ID, nil)
	var dup domain.DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNameError, got %v", err)
	}
}
