// Package service implements the DID document lifecycle: creation, draft
// editing, verification method linking, the review state machine, and the
// sign-and-publish transaction against the external signer and registrar.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"annuaire/internal/audit"
	certmodels "annuaire/internal/certificate/models"
	"annuaire/internal/document/assembler"
	"annuaire/internal/document/models"
	"annuaire/internal/document/store"
	"annuaire/internal/integrations/registrar"
	"annuaire/internal/platform/metrics"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/platform/sentinel"
	"annuaire/pkg/requestcontext"
)

// CertificateRegistry resolves certificates for method linking, the
// publish guards, and draft assembly. Satisfied by the certificate store.
type CertificateRegistry interface {
	FindByID(ctx context.Context, certID id.CertificateID) (*certmodels.Certificate, error)
	CurrentVersion(ctx context.Context, certID id.CertificateID) (*certmodels.Version, error)
}

// Signer produces a detached JWS over canonical document bytes.
type Signer interface {
	Sign(ctx context.Context, document any) (string, error)
}

// Registrar manages the did:web registration lifecycle.
type Registrar interface {
	Create(ctx context.Context, didURI string, document any) (*registrar.Response, error)
	Update(ctx context.Context, didURI string, document any) (*registrar.Response, error)
	Deactivate(ctx context.Context, didURI string) (*registrar.Response, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates the document lifecycle.
type Service struct {
	docs      store.Store
	certs     CertificateRegistry
	signer    Signer
	registrar Registrar

	domain       string
	platformName string

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

func WithPlatformName(name string) Option {
	return func(s *Service) {
		s.platformName = name
	}
}

// New constructs a Service. domain is the did:web host this platform
// publishes under.
func New(docs store.Store, certs CertificateRegistry, signer Signer, reg Registrar, domain string, opts ...Option) *Service {
	s := &Service{
		docs:         docs,
		certs:        certs,
		signer:       signer,
		registrar:    reg,
		domain:       domain,
		platformName: "Annuaire Platform",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var tracer = otel.Tracer("annuaire/document")

// MethodSpec describes one verification method to link.
type MethodSpec struct {
	CertificateID id.CertificateID
	Fragment      string
	MethodType    string
	Relationships []models.Relationship
}

// CreateRequest carries a document creation.
type CreateRequest struct {
	Label            string
	Methods          []MethodSpec
	ServiceEndpoints []assembler.ServiceEndpointSpec
}

// Create registers a DRAFT document owned by the actor, links any
// initial verification methods, and stages the assembled draft.
func (s *Service) Create(ctx context.Context, org id.OrgRef, actor id.Actor, req CreateRequest) (*models.Document, error) {
	now := requestcontext.Now(ctx)
	label := strings.ToLower(strings.TrimSpace(req.Label))

	didURI := assembler.BuildDIDURI(s.domain, org.Slug, assembler.OwnerIdentifier(actor.Email), label)
	doc, err := models.NewDocument(id.DocumentID(uuid.New()), org.ID, actor.ID, label, didURI, now)
	if err != nil {
		return nil, asValidation(err)
	}
	doc.OwnerEmail = actor.Email
	doc.OwnerName = actor.Name

	// Validate method specs up front so the document is never created
	// with a half-applied set.
	built := make([]*models.VerificationMethod, 0, len(req.Methods))
	seen := make(map[string]bool, len(req.Methods))
	for _, spec := range req.Methods {
		if seen[spec.Fragment] {
			return nil, dErrors.Newf(dErrors.CodeValidation, "duplicate fragment %q", spec.Fragment)
		}
		seen[spec.Fragment] = true
		vm, err := s.buildMethod(ctx, doc, spec, now)
		if err != nil {
			return nil, err
		}
		built = append(built, vm)
	}

	draft, err := s.assembleDraft(ctx, doc, built, req.ServiceEndpoints)
	if err != nil {
		return nil, err
	}
	doc.DraftContent = draft

	if err := s.docs.Create(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "label %q already exists for you in this organization", label)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document")
	}
	for _, vm := range built {
		method := vm
		_, err := s.docs.AddMethod(ctx, doc.ID, func(_ *models.Document, _ []*models.VerificationMethod) (*store.MethodChange, error) {
			return &store.MethodChange{Method: method, Draft: draft}, nil
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to link verification method")
		}
	}

	s.emitAudit(ctx, doc, actor, audit.ActionDocumentCreated, audit.Metadata{
		Label:  label,
		DIDURI: didURI,
	})
	if s.metrics != nil {
		s.metrics.DocumentsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "document created",
		"document_id", doc.ID, "label", label, "did_uri", didURI)
	return doc, nil
}

// UpdateDraft re-stages the assembled draft, optionally with new service
// endpoints. A REJECTED document returns to DRAFT with its review verdict
// wiped.
func (s *Service) UpdateDraft(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, endpoints []assembler.ServiceEndpointSpec) (*models.Document, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var draft json.RawMessage
	doc, err := s.docs.Execute(ctx, docID,
		func(locked *models.Document, methods []*models.VerificationMethod) error {
			if err := locked.CanEditDraft(actor); err != nil {
				return asValidation(err)
			}
			assembled, err := s.assembleDraft(ctx, locked, methods, endpoints)
			if err != nil {
				return err
			}
			draft = assembled
			return nil
		},
		func(locked *models.Document) {
			locked.ApplyDraftUpdate(draft, now)
		})
	if err != nil {
		return nil, s.translate(err, "failed to update draft")
	}

	s.emitAudit(ctx, doc, actor, audit.ActionDraftUpdated, audit.Metadata{Label: doc.Label})
	return doc, nil
}

// AddVerificationMethod links a certificate to an editable document and
// refreshes the draft from the new method set.
func (s *Service) AddVerificationMethod(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, spec MethodSpec) (*models.VerificationMethod, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	vm, err := s.docs.AddMethod(ctx, docID,
		func(locked *models.Document, methods []*models.VerificationMethod) (*store.MethodChange, error) {
			if err := locked.CanEditDraft(actor); err != nil {
				return nil, asValidation(err)
			}
			for _, existing := range methods {
				if existing.Fragment == spec.Fragment {
					return nil, dErrors.Newf(dErrors.CodeConflict, "fragment %q already exists", spec.Fragment)
				}
			}
			built, err := s.buildMethod(ctx, locked, spec, now)
			if err != nil {
				return nil, err
			}
			draft, err := s.assembleDraft(ctx, locked, append(methods, built), nil)
			if err != nil {
				return nil, err
			}
			return &store.MethodChange{Method: built, Draft: draft}, nil
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "fragment %q already exists", spec.Fragment)
		}
		return nil, s.translate(err, "failed to add verification method")
	}

	s.emitAuditByID(ctx, org, docID, actor, audit.ActionMethodAdded, audit.Metadata{Fragment: vm.Fragment})
	return vm, nil
}

// RemoveVerificationMethod unlinks a method from an editable document and
// refreshes the draft from the remaining set.
func (s *Service) RemoveVerificationMethod(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, fragment string) error {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return err
	}

	err := s.docs.RemoveMethod(ctx, docID, fragment,
		func(locked *models.Document, _ *models.VerificationMethod, remaining []*models.VerificationMethod) (json.RawMessage, error) {
			if err := locked.CanEditDraft(actor); err != nil {
				return nil, asValidation(err)
			}
			return s.assembleDraft(ctx, locked, remaining, nil)
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "verification method not found")
		}
		return s.translate(err, "failed to remove verification method")
	}

	s.emitAuditByID(ctx, org, docID, actor, audit.ActionMethodRemoved, audit.Metadata{Fragment: fragment})
	return nil
}

// Submit moves a DRAFT or REJECTED document into review.
func (s *Service) Submit(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID) (*models.Document, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var fromStatus models.Status
	doc, err := s.docs.Execute(ctx, docID,
		func(locked *models.Document, methods []*models.VerificationMethod) error {
			if err := locked.CanSubmit(actor); err != nil {
				return asValidation(err)
			}
			if countActive(methods) == 0 {
				return dErrors.New(dErrors.CodeValidation, "add at least one verification method before submitting")
			}
			fromStatus = locked.Status
			return nil
		},
		func(locked *models.Document) {
			locked.ApplySubmit(actor, now)
		})
	if err != nil {
		return nil, s.translate(err, "failed to submit document")
	}

	s.emitAudit(ctx, doc, actor, audit.ActionDocumentSubmitted, audit.Metadata{
		Label:      doc.Label,
		FromStatus: string(fromStatus),
		ToStatus:   string(models.StatusPendingReview),
	})
	return doc, nil
}

// Approve records a positive review verdict. The reviewer must hold
// review authority and must not own the document.
func (s *Service) Approve(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, comment string) (*models.Document, error) {
	return s.review(ctx, org, actor, docID, comment, true)
}

// Reject records a negative review verdict.
func (s *Service) Reject(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, reason string) (*models.Document, error) {
	return s.review(ctx, org, actor, docID, reason, false)
}

func (s *Service) review(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, comment string, approve bool) (*models.Document, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	doc, err := s.docs.Execute(ctx, docID,
		func(locked *models.Document, _ []*models.VerificationMethod) error {
			return asValidation(locked.CanReview(actor))
		},
		func(locked *models.Document) {
			if approve {
				locked.ApplyApprove(actor, comment, now)
			} else {
				locked.ApplyReject(actor, comment, now)
			}
		})
	if err != nil {
		return nil, s.translate(err, "failed to review document")
	}

	action := audit.ActionDocumentApproved
	if !approve {
		action = audit.ActionDocumentRejected
	}
	s.emitAudit(ctx, doc, actor, action, audit.Metadata{
		Label:   doc.Label,
		Comment: comment,
	})
	return doc, nil
}

// PublishResult reports a completed publication.
type PublishResult struct {
	Document *models.Document
	Version  *models.Version
}

// Publish signs the draft, registers it, appends a version snapshot, and
// promotes the draft into live content, all or nothing. Signer or
// registrar failures leave the document in its pre-publish status.
func (s *Service) Publish(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID) (*PublishResult, error) {
	ctx, span := tracer.Start(ctx, "document.publish")
	defer span.End()

	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	doc, version, err := s.docs.Publish(ctx, docID,
		func(locked *models.Document, methods []*models.VerificationMethod, current *models.Version) (*models.Version, error) {
			if err := locked.CanPublish(actor); err != nil {
				return nil, asValidation(err)
			}
			if err := locked.CanRepublish(); err != nil {
				return nil, err
			}
			if err := s.checkPublishGuards(ctx, locked, methods); err != nil {
				return nil, err
			}

			// SIGNED is transient: visible only on this working copy,
			// rolled back with everything else on failure.
			firstPublish := current == nil
			locked.Status = models.StatusSigned

			var draft assembler.Document
			if err := json.Unmarshal(locked.DraftContent, &draft); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "draft content is not a valid document")
			}

			jws, err := s.signer.Sign(ctx, draft)
			if err != nil {
				return nil, asExternal(err, "document signing failed")
			}
			signed := assembler.AddProof(draft, jws, now)
			signedRaw, err := json.Marshal(signed)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize signed document")
			}

			var response *registrar.Response
			if firstPublish {
				response, err = s.registrar.Create(ctx, locked.DIDURI, signed)
			} else {
				response, err = s.registrar.Update(ctx, locked.DIDURI, signed)
			}
			if err != nil {
				return nil, asExternal(err, "registrar call failed")
			}

			next := 1
			if current != nil {
				next = current.VersionNumber + 1
			}
			return models.NewVersion(id.DocumentVersionID(uuid.New()), locked.ID, next,
				signedRaw, jws, response.Raw, actor.ID, now)
		})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeExternalService) {
			s.metrics.PublishFailures.Inc()
		}
		return nil, s.translate(err, "failed to publish document")
	}

	s.emitAudit(ctx, doc, actor, audit.ActionDocumentSigned, audit.Metadata{Label: doc.Label})
	s.emitAudit(ctx, doc, actor, audit.ActionDocumentPublished, audit.Metadata{
		Label:         doc.Label,
		DIDURI:        doc.DIDURI,
		VersionNumber: version.VersionNumber,
	})
	if s.metrics != nil {
		s.metrics.DocumentsPublished.Inc()
	}
	s.logger.InfoContext(ctx, "document published",
		"document_id", doc.ID, "version_number", version.VersionNumber)
	return &PublishResult{Document: doc, Version: version}, nil
}

// Deactivate retires a PUBLISHED document at the registrar and marks it
// DEACTIVATED. Terminal.
func (s *Service) Deactivate(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, reason string) (*models.Document, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	doc, err := s.docs.Execute(ctx, docID,
		func(locked *models.Document, _ []*models.VerificationMethod) error {
			if err := locked.CanDeactivate(actor); err != nil {
				return asValidation(err)
			}
			if _, err := s.registrar.Deactivate(ctx, locked.DIDURI); err != nil {
				return asExternal(err, "registrar deactivation failed")
			}
			return nil
		},
		func(locked *models.Document) {
			locked.ApplyDeactivation(now)
		})
	if err != nil {
		return nil, s.translate(err, "failed to deactivate document")
	}

	s.emitAudit(ctx, doc, actor, audit.ActionDocumentDeactivated, audit.Metadata{
		Label:   doc.Label,
		DIDURI:  doc.DIDURI,
		Comment: reason,
	})
	if s.metrics != nil {
		s.metrics.DocumentsDeactivated.Inc()
	}
	return doc, nil
}

// VerifiableCredential wraps a published document's live content in a
// publication credential.
func (s *Service) VerifiableCredential(ctx context.Context, org id.OrgRef, actor id.Actor, docID id.DocumentID) (*assembler.VerifiableCredential, error) {
	doc, err := s.findScoped(ctx, org.ID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusPublished || len(doc.Content) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "only published documents carry a credential")
	}

	var content assembler.Document
	if err := json.Unmarshal(doc.Content, &content); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "published content is not a valid document")
	}

	version := 0
	publishedAt := doc.UpdatedAt
	if current, err := s.docs.CurrentVersion(ctx, docID); err == nil {
		version = current.VersionNumber
		publishedAt = current.PublishedAt
	}

	// The credential names the document owner, not whoever fetched it.
	ownerName := doc.OwnerName
	if ownerName == "" {
		ownerName = doc.OwnerEmail
	}
	vc := assembler.BuildVerifiableCredential(assembler.CredentialInput{
		Domain:       s.domain,
		PlatformName: s.platformName,
		DIDURI:       doc.DIDURI,
		Document:     content,
		OrgName:      org.Name,
		OwnerName:    ownerName,
		Label:        doc.Label,
		Version:      version,
		PublishedAt:  publishedAt,
	})
	return &vc, nil
}

// Get returns a document scoped to the organization.
func (s *Service) Get(ctx context.Context, org id.OrgID, docID id.DocumentID) (*models.Document, error) {
	return s.findScoped(ctx, org, docID)
}

// List returns the organization's documents, newest first.
func (s *Service) List(ctx context.Context, org id.OrgID) ([]*models.Document, error) {
	docs, err := s.docs.ListByOrg(ctx, org)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}

// ListMine returns the documents the actor owns in the organization.
func (s *Service) ListMine(ctx context.Context, org id.OrgID, actor id.Actor) ([]*models.Document, error) {
	docs, err := s.docs.ListByOwner(ctx, org, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list documents")
	}
	return docs, nil
}

// ListMethods returns a document's verification method links.
func (s *Service) ListMethods(ctx context.Context, org id.OrgID, docID id.DocumentID) ([]*models.VerificationMethod, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	methods, err := s.docs.ListMethods(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification methods")
	}
	return methods, nil
}

// ListVersions returns a document's publish history, newest first.
func (s *Service) ListVersions(ctx context.Context, org id.OrgID, docID id.DocumentID) ([]*models.Version, error) {
	if _, err := s.findScoped(ctx, org, docID); err != nil {
		return nil, err
	}
	versions, err := s.docs.ListVersions(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list document versions")
	}
	return versions, nil
}

// ── Internal helpers ─────────────────────────────────────────────────────

// buildMethod validates a spec against its certificate and constructs the
// method link. The certificate must be ACTIVE and in the document's org.
func (s *Service) buildMethod(ctx context.Context, doc *models.Document, spec MethodSpec, now time.Time) (*models.VerificationMethod, error) {
	cert, err := s.certs.FindByID(ctx, spec.CertificateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve certificate")
	}
	if cert.OrgID != doc.OrgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	if cert.Status != certmodels.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"certificate %q is %s and cannot back a verification method", cert.Label, cert.Status)
	}
	return models.NewVerificationMethod(id.MethodID(uuid.New()), doc.ID, spec.CertificateID,
		spec.Fragment, spec.MethodType, spec.Relationships, now)
}

func (s *Service) assembleDraft(ctx context.Context, doc *models.Document, methods []*models.VerificationMethod, endpoints []assembler.ServiceEndpointSpec) (json.RawMessage, error) {
	resolved := make([]assembler.ResolvedMethod, 0, len(methods))
	for _, vm := range methods {
		entry := assembler.ResolvedMethod{Method: vm}
		if vm.IsActive {
			if version, err := s.certs.CurrentVersion(ctx, vm.CertificateID); err == nil {
				jwk := version.PublicKeyJWK
				entry.JWK = &jwk
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve certificate key")
			}
		}
		resolved = append(resolved, entry)
	}
	assembled := assembler.Assemble(doc.DIDURI, resolved, endpoints)
	raw, err := json.Marshal(assembled)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize draft")
	}
	return raw, nil
}

// checkPublishGuards enforces the content guards: a non-empty draft, at
// least one active method, and no active method referencing a revoked
// certificate.
func (s *Service) checkPublishGuards(ctx context.Context, doc *models.Document, methods []*models.VerificationMethod) error {
	if len(doc.DraftContent) == 0 {
		return dErrors.New(dErrors.CodeValidation, "no draft content to publish")
	}
	active := 0
	revoked := 0
	for _, vm := range methods {
		if !vm.IsActive {
			continue
		}
		active++
		cert, err := s.certs.FindByID(ctx, vm.CertificateID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve certificate")
		}
		if cert.Status == certmodels.StatusRevoked {
			revoked++
		}
	}
	if revoked > 0 {
		return dErrors.Newf(dErrors.CodeValidation,
			"%d verification method(s) reference revoked certificates", revoked)
	}
	if active == 0 {
		return dErrors.New(dErrors.CodeValidation, "add at least one verification method before publishing")
	}
	return nil
}

func (s *Service) findScoped(ctx context.Context, org id.OrgID, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if doc.OrgID != org {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return doc, nil
}

func (s *Service) translate(err error, fallback string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if dErrors.Coded(err) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, fallback)
}

func countActive(methods []*models.VerificationMethod) int {
	n := 0
	for _, vm := range methods {
		if vm.IsActive {
			n++
		}
	}
	return n
}

// asValidation surfaces invariant violations as validation errors; other
// coded errors pass through untouched.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

// asExternal recodes uncoded collaborator failures; already-coded errors
// keep their code.
func asExternal(err error, message string) error {
	if dErrors.Coded(err) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeExternalService, message)
}

func (s *Service) emitAudit(ctx context.Context, doc *models.Document, actor id.Actor, action audit.Action, metadata audit.Metadata) {
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		OrgID:        doc.OrgID,
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		Action:       action,
		ResourceType: audit.ResourceDocument,
		ResourceID:   doc.ID.String(),
		Metadata:     metadata,
	})
}

func (s *Service) emitAuditByID(ctx context.Context, org id.OrgID, docID id.DocumentID, actor id.Actor, action audit.Action, metadata audit.Metadata) {
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		OrgID:        org,
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		Action:       action,
		ResourceType: audit.ResourceDocument,
		ResourceID:   docID.String(),
		Metadata:     metadata,
	})
}
