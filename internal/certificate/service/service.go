// Package service implements the certificate registry: upload, rotation,
// revocation with its verification-method cascade, and org-scoped reads.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"annuaire/internal/audit"
	"annuaire/internal/certificate/models"
	"annuaire/internal/certificate/store"
	"annuaire/internal/platform/metrics"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/platform/sentinel"
	"annuaire/pkg/requestcontext"
)

// Extractor obtains X.509 metadata and the public key JWK from raw
// certificate bytes. The password is only set for P12 uploads.
type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte, password string) (models.ExtractionResult, error)
}

// MethodDeactivator is the revocation-cascade port. Implemented by the
// document store so flipping methods inactive shares its locking.
type MethodDeactivator interface {
	DeactivateByCertificate(ctx context.Context, certID id.CertificateID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// FileStore persists uploaded certificate bytes and returns an opaque
// reference. The registry never reads the bytes back.
type FileStore interface {
	Save(ctx context.Context, filename string, content []byte) (id.FileID, error)
}

// Service orchestrates the certificate lifecycle.
type Service struct {
	certs       store.Store
	extractor   Extractor
	files       FileStore
	deactivator MethodDeactivator

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(certs store.Store, extractor Extractor, files FileStore, deactivator MethodDeactivator, opts ...Option) *Service {
	s := &Service{
		certs:       certs,
		extractor:   extractor,
		files:       files,
		deactivator: deactivator,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var tracer = otel.Tracer("annuaire/certificate")

// UploadRequest carries one certificate upload.
type UploadRequest struct {
	Label       string
	Filename    string
	Content     []byte
	P12Password string
}

// Upload registers a new certificate with its first version.
func (s *Service) Upload(ctx context.Context, org id.OrgID, actor id.Actor, req UploadRequest) (*models.Certificate, *models.Version, error) {
	now := requestcontext.Now(ctx)

	cert, err := models.NewCertificate(id.CertificateID(uuid.New()), org, req.Label, actor.ID, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, nil, err
	}

	extraction, err := s.extract(ctx, req.Filename, req.Content, req.P12Password)
	if err != nil {
		return nil, nil, err
	}
	fileID, err := s.files.Save(ctx, req.Filename, req.Content)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate file")
	}

	first, err := models.NewVersion(id.CertificateVersionID(uuid.New()), cert.ID, 1, fileID, extraction, actor.ID, now)
	if err != nil {
		return nil, nil, err
	}

	if err := s.certs.Create(ctx, cert, first); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "certificate label already in use")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
	}

	s.emitAudit(ctx, org, actor, audit.ActionCertificateUploaded, cert.ID, audit.Metadata{
		Label:         cert.Label,
		VersionNumber: first.VersionNumber,
	})
	if s.metrics != nil {
		s.metrics.CertificatesUploaded.Inc()
	}
	s.logger.InfoContext(ctx, "certificate uploaded",
		"certificate_id", cert.ID, "org_id", org, "label", cert.Label)
	return cert, first, nil
}

// Rotate appends a new current version to an active certificate.
func (s *Service) Rotate(ctx context.Context, org id.OrgID, actor id.Actor, certID id.CertificateID, req UploadRequest) (*models.Version, error) {
	cert, err := s.findScoped(ctx, org, certID)
	if err != nil {
		return nil, err
	}
	if err := cert.CanRotate(); err != nil {
		return nil, asValidation(err)
	}

	// Extraction shells out and may take seconds; keep it outside the lock.
	extraction, err := s.extract(ctx, req.Filename, req.Content, req.P12Password)
	if err != nil {
		return nil, err
	}
	fileID, err := s.files.Save(ctx, req.Filename, req.Content)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate file")
	}

	now := requestcontext.Now(ctx)
	version, err := s.certs.AppendVersion(ctx, certID,
		func(locked *models.Certificate, current *models.Version) (*models.Version, error) {
			if err := locked.CanRotate(); err != nil {
				return nil, err
			}
			next := 1
			if current != nil {
				next = current.VersionNumber + 1
			}
			return models.NewVersion(id.CertificateVersionID(uuid.New()), certID, next, fileID, extraction, actor.ID, now)
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		if dErrors.Coded(err) {
			return nil, asValidation(err)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate certificate")
	}

	s.emitAudit(ctx, org, actor, audit.ActionCertificateRotated, certID, audit.Metadata{
		Label:         cert.Label,
		VersionNumber: version.VersionNumber,
	})
	if s.metrics != nil {
		s.metrics.CertificatesRotated.Inc()
	}
	s.logger.InfoContext(ctx, "certificate rotated",
		"certificate_id", certID, "version_number", version.VersionNumber)
	return version, nil
}

// RevocationResult reports a revoke and the cascade it triggered.
type RevocationResult struct {
	Certificate        *models.Certificate
	DeactivatedMethods int
}

// Revoke flips the certificate to REVOKED and deactivates every active
// verification method that references it. Revocation is one-way.
func (s *Service) Revoke(ctx context.Context, org id.OrgID, actor id.Actor, certID id.CertificateID, reason string) (*RevocationResult, error) {
	ctx, span := tracer.Start(ctx, "certificate.revoke")
	defer span.End()

	if _, err := s.findScoped(ctx, org, certID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	cert, err := s.certs.Execute(ctx, certID,
		func(locked *models.Certificate) error {
			return locked.CanRevoke()
		},
		func(locked *models.Certificate) {
			locked.ApplyRevocation(now)
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		if dErrors.Coded(err) {
			return nil, asValidation(err)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
	}

	affected, err := s.deactivator.DeactivateByCertificate(ctx, certID)
	if err != nil {
		// The certificate stays revoked; the cascade is retriable.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate dependent verification methods")
	}

	s.emitAudit(ctx, org, actor, audit.ActionCertificateRevoked, certID, audit.Metadata{
		Label:         cert.Label,
		Comment:       reason,
		AffectedCount: affected,
	})
	if affected > 0 {
		s.emitAudit(ctx, org, actor, audit.ActionMethodsCascadeClosed, certID, audit.Metadata{
			AffectedCount: affected,
		})
	}
	if s.metrics != nil {
		s.metrics.CertificatesRevoked.Inc()
		s.metrics.MethodsDeactivated.Add(float64(affected))
	}
	s.logger.InfoContext(ctx, "certificate revoked",
		"certificate_id", certID, "deactivated_methods", affected)
	return &RevocationResult{Certificate: cert, DeactivatedMethods: affected}, nil
}

// Get returns a certificate scoped to the organization.
func (s *Service) Get(ctx context.Context, org id.OrgID, certID id.CertificateID) (*models.Certificate, error) {
	return s.findScoped(ctx, org, certID)
}

// List returns the organization's certificates, newest first.
func (s *Service) List(ctx context.Context, org id.OrgID) ([]*models.Certificate, error) {
	certs, err := s.certs.ListByOrg(ctx, org)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}

// ListMine returns the certificates the actor uploaded in the organization.
func (s *Service) ListMine(ctx context.Context, org id.OrgID, actor id.Actor) ([]*models.Certificate, error) {
	certs, err := s.certs.ListByUploader(ctx, org, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}

// ListVersions returns a certificate's version history, newest first.
func (s *Service) ListVersions(ctx context.Context, org id.OrgID, certID id.CertificateID) ([]*models.Version, error) {
	if _, err := s.findScoped(ctx, org, certID); err != nil {
		return nil, err
	}
	versions, err := s.certs.ListVersions(ctx, certID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificate versions")
	}
	return versions, nil
}

// CurrentVersion returns the version the certificate currently points at.
func (s *Service) CurrentVersion(ctx context.Context, org id.OrgID, certID id.CertificateID) (*models.Version, error) {
	if _, err := s.findScoped(ctx, org, certID); err != nil {
		return nil, err
	}
	version, err := s.certs.CurrentVersion(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate has no current version")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load current version")
	}
	return version, nil
}

func (s *Service) extract(ctx context.Context, filename string, content []byte, password string) (models.ExtractionResult, error) {
	if len(content) == 0 {
		return models.ExtractionResult{}, dErrors.New(dErrors.CodeValidation, "certificate file is empty")
	}
	extraction, err := s.extractor.Extract(ctx, filename, content, password)
	if err != nil {
		return models.ExtractionResult{}, dErrors.Wrap(err, dErrors.CodeValidation, "certificate metadata extraction failed")
	}
	return extraction, nil
}

// findScoped resolves a certificate and hides it when it belongs to a
// different organization.
func (s *Service) findScoped(ctx context.Context, org id.OrgID, certID id.CertificateID) (*models.Certificate, error) {
	cert, err := s.certs.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	if cert.OrgID != org {
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	return cert, nil
}

// asValidation surfaces invariant violations to callers as validation
// errors; other coded errors pass through untouched.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func (s *Service) emitAudit(ctx context.Context, org id.OrgID, actor id.Actor, action audit.Action, certID id.CertificateID, metadata audit.Metadata) {
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		OrgID:        org,
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		Action:       action,
		ResourceType: audit.ResourceCertificate,
		ResourceID:   certID.String(),
		Metadata:     metadata,
	})
}
