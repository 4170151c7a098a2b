package archive

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"samplecore/pkg/domain"
)

// stubCatalog serves a fixed document and history.
type stubCatalog struct {
	doc     domain.Document
	history []domain.Document
	err     error
}

func (c *stubCatalog) Get(_ context.Context, kind domain.Kind, id string) (domain.Document, error) {
	if c.err != nil {
		return domain.Document{}, c.err
	}
	return c.doc, nil
}

func (c *stubCatalog) Revisions(_ context.Context, kind domain.Kind, id string) ([]domain.Document, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.history, nil
}

func TestArchiveWritesCompleteBundle(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{
		doc: domain.Document{
			ID:       "id-1",
			Kind:     domain.KindSample,
			Revision: 2,
			Fields:   domain.Fields{"name": "m_sample", "owner": "third"},
		},
		history: []domain.Document{
			{ID: "id-1", Kind: domain.KindSample, Revision: 1, Fields: domain.Fields{"name": "m_sample", "owner": "second"}},
			{ID: "id-1", Kind: domain.KindSample, Revision: 0, Fields: domain.Fields{"name": "m_sample", "owner": "first"}},
		},
	}
	blobs := NewMemory()
	archiver := NewHistoryArchiver(catalog, blobs)

	info, err := archiver.Archive(ctx, domain.KindSample, "id-1")
	require.NoError(t, err)
	require.Equal(t, "sample/id-1/revision-00002.json", info.Key)
	require.Equal(t, "application/json", info.ContentType)
	require.Equal(t, "sample", info.Metadata["kind"])
	require.Equal(t, "id-1", info.Metadata["document"])

	_, rc, err := blobs.Get(ctx, info.Key)
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	var bundle Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	require.Equal(t, "id-1", bundle.Document.ID)
	require.Equal(t, 2, bundle.Document.Revision)
	require.Len(t, bundle.Revisions, 2)
	require.Equal(t, 1, bundle.Revisions[0].Revision)
	require.False(t, bundle.ArchivedAt.IsZero())
}

func TestArchiveSameRevisionTwiceFails(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{
		doc: domain.Document{ID: "id-1", Kind: domain.KindSample, Revision: 0,
			Fields: domain.Fields{"name": "m_sample"}},
	}
	archiver := NewHistoryArchiver(catalog, NewMemory())

	_, err := archiver.Archive(ctx, domain.KindSample, "id-1")
	require.NoError(t, err)
	_, err = archiver.Archive(ctx, domain.KindSample, "id-1")
	require.Error(t, err, "re-archiving the same live revision must hit the create-only store")
}

func TestArchivePropagatesCatalogErrors(t *testing.T) {
	catalog := &stubCatalog{err: domain.NotFoundError{Kind: domain.KindSample, ID: "id-9"}}
	archiver := NewHistoryArchiver(catalog, NewMemory())

	_, err := archiver.Archive(context.Background(), domain.KindSample, "id-9")
	require.True(t, domain.IsNotFound(err))
}

func TestBundleKeyShape(t *testing.T) {
	require.Equal(t, "request/abc/revision-00013.json", BundleKey(domain.KindRequest, "abc", 13))
}
