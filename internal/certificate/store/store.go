// Package store provides certificate persistence. Two implementations
// exist: InMemory for unit tests and development, PostgresStore for
// production. Both serialize per-certificate read-then-write sequences so
// version numbers are allocated without races.
package store

import (
	"context"

	"annuaire/internal/certificate/models"
	id "annuaire/pkg/domain"
)

// Store is the persistence contract the certificate service depends on.
//
// Create, AppendVersion, and Execute are atomic: their validate/build
// callbacks run while the implementation holds the per-certificate lock
// (mutex for InMemory, row lock inside a transaction for Postgres), so the
// single-current-version invariant and version numbering survive concurrent
// writers. A callback error aborts the operation with nothing persisted.
type Store interface {
	// Create inserts a certificate together with its first version and
	// points CurrentVersionID at it. Returns sentinel.ErrConflict when the
	// label is already taken in the organization.
	Create(ctx context.Context, cert *models.Certificate, first *models.Version) error

	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindByLabel(ctx context.Context, orgID id.OrgID, label string) (*models.Certificate, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Certificate, error)
	ListByUploader(ctx context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Certificate, error)

	ListVersions(ctx context.Context, certID id.CertificateID) ([]*models.Version, error)
	// CurrentVersion returns the version CurrentVersionID points at, or
	// sentinel.ErrNotFound when the certificate has no versions.
	CurrentVersion(ctx context.Context, certID id.CertificateID) (*models.Version, error)

	// AppendVersion runs build with the certificate and its current version
	// (nil when none exists) under the per-certificate lock, then archives
	// the old current version, inserts the built one, and repoints
	// CurrentVersionID — all atomically.
	AppendVersion(ctx context.Context, certID id.CertificateID,
		build func(cert *models.Certificate, current *models.Version) (*models.Version, error),
	) (*models.Version, error)

	// Execute runs validate then mutate on the certificate under the
	// per-certificate lock and persists the result.
	Execute(ctx context.Context, certID id.CertificateID,
		validate func(*models.Certificate) error,
		mutate func(*models.Certificate),
	) (*models.Certificate, error)
}
