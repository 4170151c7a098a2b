package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"samplecore/pkg/domain"
)

// Catalog is the slice of the document manager the archiver reads from.
type Catalog interface {
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Document, error)
	Revisions(ctx context.Context, kind domain.Kind, id string) ([]domain.Document, error)
}

// Bundle is the serialized form of one archived document history.
type Bundle struct {
	Document   domain.Document   `json:"document"`
	Revisions  []domain.Document `json:"revisions"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// HistoryArchiver snapshots a document and its complete revision history into
// a blob store as a single JSON bundle.
type HistoryArchiver struct {
	catalog Catalog
	blobs   Store
	nowFn   func() time.Time
}

// NewHistoryArchiver constructs an archiver over the catalog and blob store.
func NewHistoryArchiver(catalog Catalog, blobs Store) *HistoryArchiver {
	return &HistoryArchiver{
		catalog: catalog,
		blobs:   blobs,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Archive writes the bundle for the document. The key embeds the live
// revision number, so re-archiving after further mutations produces a new
// object while an accidental duplicate archive of the same revision fails on
// the store's create-only Put.
func (a *HistoryArchiver) Archive(ctx context.Context, kind domain.Kind, id string) (Info, error) {
	doc, err := a.catalog.Get(ctx, kind, id)
	if err != nil {
		return Info{}, err
	}
	history, err := a.catalog.Revisions(ctx, kind, id)
	if err != nil {
		return Info{}, err
	}
	bundle := Bundle{Document: doc, Revisions: history, ArchivedAt: a.nowFn()}
	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode bundle: %w", err)
	}
	key := BundleKey(kind, id, doc.Revision)
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(payload), PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"kind":     string(kind),
			"document": id,
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("store bundle: %w", err)
	}
	return info, nil
}

// BundleKey names the blob holding the bundle for a document at a revision.
func BundleKey(kind domain.Kind, id string, revision int) string {
	return fmt.Sprintf("%s/%s/revision-%05d.json", kind, id, revision)
}
