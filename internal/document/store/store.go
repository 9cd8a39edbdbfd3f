// Package store provides DID document persistence: the document row, its
// verification method links, and its append-only publish versions. Both
// implementations serialize per-document read-then-write sequences, which
// also makes the revocation cascade and publish mutually exclusive over
// the same verification method rows.
package store

import (
	"context"
	"encoding/json"

	"annuaire/internal/document/models"
	id "annuaire/pkg/domain"
)

// MethodChange is returned by add/remove callbacks: the method to insert
// (nil on removal) and the refreshed draft content to persist alongside.
type MethodChange struct {
	Method *models.VerificationMethod
	Draft  json.RawMessage
}

// Store is the persistence contract the document service depends on.
//
// Execute, AddMethod, RemoveMethod, and Publish run their callbacks while
// holding the per-document lock (mutex for InMemory, row lock inside a
// transaction for Postgres). A callback error aborts the operation with
// nothing persisted.
type Store interface {
	// Create inserts a DRAFT document. Returns sentinel.ErrConflict when
	// the (org, owner, label) tuple is already taken.
	Create(ctx context.Context, doc *models.Document) error

	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	FindPublishedByDIDURI(ctx context.Context, didURI string) (*models.Document, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Document, error)
	ListByOwner(ctx context.Context, orgID id.OrgID, ownerID id.UserID) ([]*models.Document, error)

	// Execute runs validate then mutate on the document under the
	// per-document lock and persists the result. The callbacks also see
	// the document's verification methods for guards that need them.
	Execute(ctx context.Context, docID id.DocumentID,
		validate func(doc *models.Document, methods []*models.VerificationMethod) error,
		mutate func(doc *models.Document),
	) (*models.Document, error)

	ListMethods(ctx context.Context, docID id.DocumentID) ([]*models.VerificationMethod, error)

	// AddMethod runs build under the document lock with the current method
	// set, then inserts the returned method and persists the refreshed
	// draft. Returns sentinel.ErrConflict when the fragment is taken.
	AddMethod(ctx context.Context, docID id.DocumentID,
		build func(doc *models.Document, methods []*models.VerificationMethod) (*MethodChange, error),
	) (*models.VerificationMethod, error)

	// RemoveMethod deletes the method with the given fragment after check
	// passes, persisting the refreshed draft in the same critical section.
	// Returns sentinel.ErrNotFound when no such fragment exists.
	RemoveMethod(ctx context.Context, docID id.DocumentID, fragment string,
		check func(doc *models.Document, method *models.VerificationMethod, remaining []*models.VerificationMethod) (json.RawMessage, error),
	) error

	// Publish runs fn with the locked document, its methods, and the
	// current version (nil on first publish). fn performs the publish
	// guards, signing, and registrar call, returning the version snapshot
	// to append. On success the version is inserted, the document's
	// content is promoted from the snapshot, its draft cleared, and its
	// status set to PUBLISHED, all atomically. On error the document is
	// left exactly as it was.
	Publish(ctx context.Context, docID id.DocumentID,
		fn func(doc *models.Document, methods []*models.VerificationMethod, current *models.Version) (*models.Version, error),
	) (*models.Document, *models.Version, error)

	ListVersions(ctx context.Context, docID id.DocumentID) ([]*models.Version, error)
	CurrentVersion(ctx context.Context, docID id.DocumentID) (*models.Version, error)

	// DeactivateByCertificate flips every active method referencing the
	// certificate to inactive and returns the affected count. Published
	// snapshots are untouched; only future assembly sees the change.
	DeactivateByCertificate(ctx context.Context, certID id.CertificateID) (int, error)
}
