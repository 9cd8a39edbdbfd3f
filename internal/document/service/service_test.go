package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"annuaire/internal/audit"
	certmodels "annuaire/internal/certificate/models"
	certstore "annuaire/internal/certificate/store"
	"annuaire/internal/document/assembler"
	"annuaire/internal/document/models"
	"annuaire/internal/document/service"
	"annuaire/internal/document/store"
	"annuaire/internal/integrations/registrar"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/requestcontext"
)

type fakeSigner struct {
	jws   string
	err   error
	calls int
}

func (f *fakeSigner) Sign(_ context.Context, _ any) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.jws, nil
}

type fakeRegistrar struct {
	creates     int
	updates     int
	deactivates int
	err         error
}

func (f *fakeRegistrar) response(didURI string) *registrar.Response {
	return &registrar.Response{
		DIDState: registrar.DIDState{State: registrar.StateFinished, DID: didURI},
		Raw:      json.RawMessage(`{"didState":{"state":"finished"}}`),
	}
}

func (f *fakeRegistrar) Create(_ context.Context, didURI string, _ any) (*registrar.Response, error) {
	f.creates++
	if f.err != nil {
		return nil, f.err
	}
	return f.response(didURI), nil
}

func (f *fakeRegistrar) Update(_ context.Context, didURI string, _ any) (*registrar.Response, error) {
	f.updates++
	if f.err != nil {
		return nil, f.err
	}
	return f.response(didURI), nil
}

func (f *fakeRegistrar) Deactivate(_ context.Context, didURI string) (*registrar.Response, error) {
	f.deactivates++
	if f.err != nil {
		return nil, f.err
	}
	return f.response(didURI), nil
}

type DocumentServiceSuite struct {
	suite.Suite

	ctx       context.Context
	docs      *store.InMemory
	certs     *certstore.InMemory
	signer    *fakeSigner
	registrar *fakeRegistrar
	auditLog  *audit.InMemoryStore
	svc       *service.Service

	org      id.OrgRef
	owner    id.Actor
	reviewer id.Actor
	admin    id.Actor
	stranger id.Actor
}

func TestDocumentServiceSuite(t *testing.T) {
	suite.Run(t, new(DocumentServiceSuite))
}

func (s *DocumentServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	s.docs = store.NewInMemory()
	s.certs = certstore.NewInMemory()
	s.signer = &fakeSigner{jws: "eyJhbGciOiJFUzI1NiJ9..test-signature"}
	s.registrar = &fakeRegistrar{}
	s.auditLog = audit.NewInMemoryStore()

	s.org = id.OrgRef{ID: id.OrgID(uuid.New()), Slug: "acme", Name: "ACME Corp"}
	s.owner = id.Actor{ID: id.UserID(uuid.New()), Email: "alice.martin@example.com", Name: "Alice Martin"}
	s.reviewer = id.Actor{ID: id.UserID(uuid.New()), Email: "bob@example.com", CanReview: true}
	s.admin = id.Actor{ID: id.UserID(uuid.New()), Email: "root@example.com", CanReview: true, Admin: true}
	s.stranger = id.Actor{ID: id.UserID(uuid.New()), Email: "eve@example.com"}

	s.svc = service.New(s.docs, s.certs, s.signer, s.registrar, "example.com",
		service.WithAuditPublisher(audit.NewPublisher(s.auditLog)))
}

func (s *DocumentServiceSuite) seedCertificate(label string) *certmodels.Certificate {
	return s.seedCertificateInOrg(label, s.org.ID)
}

func (s *DocumentServiceSuite) seedCertificateInOrg(label string, orgID id.OrgID) *certmodels.Certificate {
	now := time.Now().UTC()
	cert, err := certmodels.NewCertificate(id.CertificateID(uuid.New()), orgID, label, s.owner.ID, now)
	s.Require().NoError(err)
	version, err := certmodels.NewVersion(id.CertificateVersionID(uuid.New()), cert.ID, 1,
		id.FileID(uuid.New()), certmodels.ExtractionResult{
			SubjectDN:         "CN=" + label,
			KeyType:           "EC",
			KeyCurve:          "P-256",
			FingerprintSHA256: "ab:cd",
			PublicKeyJWK:      certmodels.JWK{Kty: "EC", Crv: "P-256", X: "x", Y: "y"},
		}, s.owner.ID, now)
	s.Require().NoError(err)
	s.Require().NoError(s.certs.Create(context.Background(), cert, version))
	return cert
}

func (s *DocumentServiceSuite) revokeCertificate(certID id.CertificateID) {
	_, err := s.certs.Execute(context.Background(), certID,
		func(c *certmodels.Certificate) error { return c.CanRevoke() },
		func(c *certmodels.Certificate) { c.ApplyRevocation(time.Now().UTC()) })
	s.Require().NoError(err)
}

func (s *DocumentServiceSuite) createDocument(methods ...service.MethodSpec) *models.Document {
	doc, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{
		Label:   "corp-auth",
		Methods: methods,
	})
	s.Require().NoError(err)
	return doc
}

// approvedDocument walks create → submit → approve.
func (s *DocumentServiceSuite) approvedDocument() *models.Document {
	cert := s.seedCertificate("signing-key")
	doc := s.createDocument(service.MethodSpec{
		CertificateID: cert.ID,
		Fragment:      "key-1",
		Relationships: []models.Relationship{models.RelAuthentication, models.RelAssertionMethod},
	})
	_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
	s.Require().NoError(err)
	approved, err := s.svc.Approve(s.ctx, s.org.ID, s.reviewer, doc.ID, "looks good")
	s.Require().NoError(err)
	return approved
}

func (s *DocumentServiceSuite) TestCreate() {
	s.Run("creates a draft with a deterministic DID URI", func() {
		s.SetupTest()
		doc, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{Label: "  Corp-Auth  "})
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, doc.Status)
		s.Equal("corp-auth", doc.Label)
		s.Equal("did:web:example.com:acme:alice-martin:corp-auth", doc.DIDURI)
	})

	s.Run("stages an assembled draft even with zero methods", func() {
		s.SetupTest()
		doc := s.createDocument()
		s.Require().NotEmpty(doc.DraftContent)

		var draft assembler.Document
		s.Require().NoError(json.Unmarshal(doc.DraftContent, &draft))
		s.Equal(doc.DIDURI, draft.ID)
		s.Empty(draft.VerificationMethod)
	})

	s.Run("links initial methods and reflects them in the draft", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{
			CertificateID: cert.ID,
			Fragment:      "key-1",
			Relationships: []models.Relationship{models.RelAuthentication},
		})

		methods, err := s.svc.ListMethods(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Require().Len(methods, 1)
		s.Equal("key-1", methods[0].Fragment)
		s.True(methods[0].IsActive)

		var draft assembler.Document
		s.Require().NoError(json.Unmarshal(doc.DraftContent, &draft))
		s.Require().Len(draft.VerificationMethod, 1)
		s.Equal(doc.DIDURI+"#key-1", draft.VerificationMethod[0].ID)
		s.Equal("ES256", draft.VerificationMethod[0].PublicKeyJWK.Alg)
	})

	s.Run("rejects an invalid label", func() {
		s.SetupTest()
		_, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{Label: "-bad-"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects a duplicate label for the same owner", func() {
		s.SetupTest()
		s.createDocument()
		_, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{Label: "corp-auth"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects a revoked certificate in the initial methods", func() {
		s.SetupTest()
		cert := s.seedCertificate("old-key")
		s.revokeCertificate(cert.ID)
		_, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{
			Label:   "corp-auth",
			Methods: []service.MethodSpec{{CertificateID: cert.ID, Fragment: "key-1"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("hides certificates from other organizations", func() {
		s.SetupTest()
		foreign := s.seedCertificateInOrg("other-key", id.OrgID(uuid.New()))
		_, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{
			Label:   "corp-auth",
			Methods: []service.MethodSpec{{CertificateID: foreign.ID, Fragment: "key-1"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects duplicate fragments in the request", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		_, err := s.svc.Create(s.ctx, s.org, s.owner, service.CreateRequest{
			Label: "corp-auth",
			Methods: []service.MethodSpec{
				{CertificateID: cert.ID, Fragment: "key-1"},
				{CertificateID: cert.ID, Fragment: "key-1"},
			},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DocumentServiceSuite) TestVerificationMethods() {
	s.Run("add refreshes the draft", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument()

		vm, err := s.svc.AddVerificationMethod(s.ctx, s.org.ID, s.owner, doc.ID, service.MethodSpec{
			CertificateID: cert.ID,
			Fragment:      "key-1",
			Relationships: []models.Relationship{models.RelKeyAgreement},
		})
		s.Require().NoError(err)
		s.Equal(models.DefaultMethodType, vm.MethodType)

		updated, err := s.svc.Get(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		var draft assembler.Document
		s.Require().NoError(json.Unmarshal(updated.DraftContent, &draft))
		s.Require().Len(draft.VerificationMethod, 1)
		s.Equal("enc", draft.VerificationMethod[0].PublicKeyJWK.Use)
	})

	s.Run("add rejects a duplicate fragment", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})

		_, err := s.svc.AddVerificationMethod(s.ctx, s.org.ID, s.owner, doc.ID, service.MethodSpec{
			CertificateID: cert.ID,
			Fragment:      "key-1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("only the owner edits", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument()

		_, err := s.svc.AddVerificationMethod(s.ctx, s.org.ID, s.admin, doc.ID, service.MethodSpec{
			CertificateID: cert.ID,
			Fragment:      "key-1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("no edits while pending review", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		_, err = s.svc.AddVerificationMethod(s.ctx, s.org.ID, s.owner, doc.ID, service.MethodSpec{
			CertificateID: cert.ID,
			Fragment:      "key-2",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("remove refreshes the draft from the remaining set", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(
			service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"},
			service.MethodSpec{CertificateID: cert.ID, Fragment: "key-2"},
		)

		err := s.svc.RemoveVerificationMethod(s.ctx, s.org.ID, s.owner, doc.ID, "key-1")
		s.Require().NoError(err)

		updated, err := s.svc.Get(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		var draft assembler.Document
		s.Require().NoError(json.Unmarshal(updated.DraftContent, &draft))
		s.Require().Len(draft.VerificationMethod, 1)
		s.Equal(doc.DIDURI+"#key-2", draft.VerificationMethod[0].ID)
	})

	s.Run("remove of an unknown fragment is not found", func() {
		s.SetupTest()
		doc := s.createDocument()
		err := s.svc.RemoveVerificationMethod(s.ctx, s.org.ID, s.owner, doc.ID, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DocumentServiceSuite) TestReviewCycle() {
	s.Run("submit requires at least one active method", func() {
		s.SetupTest()
		doc := s.createDocument()
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("only the owner submits", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.stranger, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("owners cannot review their own document", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		reviewingOwner := s.owner
		reviewingOwner.CanReview = true
		_, err = s.svc.Approve(s.ctx, s.org.ID, reviewingOwner, doc.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("approve records the verdict", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		s.Equal(models.StatusApproved, doc.Status)
		s.Require().NotNil(doc.ReviewedBy)
		s.Equal(s.reviewer.ID, *doc.ReviewedBy)
		s.Equal("looks good", doc.ReviewComment)
	})

	s.Run("reject then edit returns to draft and wipes the verdict", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)
		rejected, err := s.svc.Reject(s.ctx, s.org.ID, s.reviewer, doc.ID, "missing key agreement")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, rejected.Status)
		s.Equal("missing key agreement", rejected.ReviewComment)

		edited, err := s.svc.UpdateDraft(s.ctx, s.org.ID, s.owner, doc.ID, nil)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, edited.Status)
		s.Nil(edited.ReviewedBy)
		s.Empty(edited.ReviewComment)
	})

	s.Run("resubmission audits the rejected origin", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)
		_, err = s.svc.Reject(s.ctx, s.org.ID, s.reviewer, doc.ID, "needs work")
		s.Require().NoError(err)
		_, err = s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		var submissions []audit.Metadata
		for _, event := range s.auditLog.All() {
			if event.Action == audit.ActionDocumentSubmitted {
				submissions = append(submissions, event.Metadata)
			}
		}
		s.Require().Len(submissions, 2)
		s.Equal(string(models.StatusDraft), submissions[0].FromStatus)
		s.Equal(string(models.StatusRejected), submissions[1].FromStatus)
	})

	s.Run("reviews require review authority", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})
		_, err := s.svc.Submit(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)
		_, err = s.svc.Approve(s.ctx, s.org.ID, s.stranger, doc.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *DocumentServiceSuite) TestPublish() {
	s.Run("publishes an approved document end to end", func() {
		s.SetupTest()
		doc := s.approvedDocument()

		result, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPublished, result.Document.Status)
		s.Equal(1, result.Version.VersionNumber)
		s.Equal(1, s.registrar.creates)
		s.Equal(1, s.signer.calls)

		// Live content is the signed snapshot; the draft is consumed.
		s.Equal(string(result.Version.Content), string(result.Document.Content))
		s.Empty(result.Document.DraftContent)

		var signed assembler.Document
		s.Require().NoError(json.Unmarshal(result.Document.Content, &signed))
		s.Require().NotNil(signed.Proof)
		s.Equal(s.signer.jws, signed.Proof.JWS)
		s.Equal("did:web:example.com:acme:alice-martin:corp-auth#key-1", signed.Proof.VerificationMethod)
		s.Contains(signed.Authentication, signed.VerificationMethod[0].ID)
	})

	s.Run("admins publish directly from draft", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})

		result, err := s.svc.Publish(s.ctx, s.org.ID, s.admin, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPublished, result.Document.Status)
	})

	s.Run("non-admins cannot publish from draft", func() {
		s.SetupTest()
		cert := s.seedCertificate("signing-key")
		doc := s.createDocument(service.MethodSpec{CertificateID: cert.ID, Fragment: "key-1"})

		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("refuses a document with no active methods", func() {
		s.SetupTest()
		doc := s.createDocument()

		_, err := s.svc.Publish(s.ctx, s.org.ID, s.admin, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Zero(s.signer.calls)

		current, err := s.svc.Get(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, current.Status)

		versions, err := s.svc.ListVersions(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Empty(versions)
	})

	s.Run("refuses revoked certificate references", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		methods, err := s.svc.ListMethods(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.revokeCertificate(methods[0].CertificateID)

		_, err = s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "revoked")

		versions, err := s.svc.ListVersions(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Empty(versions)
	})

	s.Run("signer failure rolls everything back", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		s.signer.err = dErrors.New(dErrors.CodeExternalService, "signserver returned status 500")

		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeExternalService))

		current, err := s.svc.Get(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, current.Status)
		s.Empty(current.Content)
		s.Zero(s.registrar.creates)
	})

	s.Run("registrar failure rolls everything back", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		s.registrar.err = dErrors.New(dErrors.CodeExternalService, "registrar rejected the document")

		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeExternalService))

		current, err := s.svc.Get(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, current.Status)
		versions, err := s.svc.ListVersions(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Empty(versions)
	})

	s.Run("re-publish after edits appends the next version", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		cert := s.seedCertificate("second-key")
		_, err = s.svc.AddVerificationMethod(s.ctx, s.org.ID, s.owner, doc.ID, service.MethodSpec{
			CertificateID: cert.ID,
			Fragment:      "key-2",
			Relationships: []models.Relationship{models.RelAssertionMethod},
		})
		s.Require().NoError(err)

		result, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)
		s.Equal(2, result.Version.VersionNumber)
		s.Equal(1, s.registrar.creates)
		s.Equal(1, s.registrar.updates)
	})

	s.Run("re-publish without pending changes is refused", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		_, err = s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("publish emits signed and published audit events", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		actions := make([]audit.Action, 0)
		for _, event := range s.auditLog.All() {
			if event.ResourceID == doc.ID.String() {
				actions = append(actions, event.Action)
			}
		}
		s.Contains(actions, audit.ActionDocumentSigned)
		s.Contains(actions, audit.ActionDocumentPublished)
	})
}

func (s *DocumentServiceSuite) TestDeactivate() {
	s.Run("retires a published document", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		deactivated, err := s.svc.Deactivate(s.ctx, s.org.ID, s.owner, doc.ID, "superseded")
		s.Require().NoError(err)
		s.Equal(models.StatusDeactivated, deactivated.Status)
		s.Equal(1, s.registrar.deactivates)
	})

	s.Run("only published documents deactivate", func() {
		s.SetupTest()
		doc := s.createDocument()
		_, err := s.svc.Deactivate(s.ctx, s.org.ID, s.owner, doc.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Zero(s.registrar.deactivates)
	})

	s.Run("registrar failure leaves the document published", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)
		s.registrar.err = dErrors.New(dErrors.CodeExternalService, "registrar unavailable")

		_, err = s.svc.Deactivate(s.ctx, s.org.ID, s.owner, doc.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalService))

		current, err := s.svc.Get(s.ctx, s.org.ID, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPublished, current.Status)
	})
}

func (s *DocumentServiceSuite) TestVerifiableCredential() {
	s.Run("wraps published content", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		vc, err := s.svc.VerifiableCredential(s.ctx, s.org, s.owner, doc.ID)
		s.Require().NoError(err)
		s.Contains(vc.Type, "DIDPublicationCredential")
		s.Equal("did:web:example.com", vc.Issuer.ID)
		s.Equal(doc.DIDURI, vc.CredentialSubject.ID)
	})

	s.Run("names the document owner regardless of the reader", func() {
		s.SetupTest()
		doc := s.approvedDocument()
		_, err := s.svc.Publish(s.ctx, s.org.ID, s.owner, doc.ID)
		s.Require().NoError(err)

		vc, err := s.svc.VerifiableCredential(s.ctx, s.org, s.admin, doc.ID)
		s.Require().NoError(err)
		s.Equal("Alice Martin", vc.CredentialSubject.Owner)
	})

	s.Run("only published documents carry one", func() {
		s.SetupTest()
		doc := s.createDocument()
		_, err := s.svc.VerifiableCredential(s.ctx, s.org, s.owner, doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DocumentServiceSuite) TestScoping() {
	s.Run("documents from other organizations are invisible", func() {
		s.SetupTest()
		doc := s.createDocument()
		_, err := s.svc.Get(s.ctx, id.OrgID(uuid.New()), doc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("list mine filters by owner", func() {
		s.SetupTest()
		s.createDocument()
		other, err := s.svc.Create(s.ctx, s.org, s.stranger, service.CreateRequest{Label: "other-doc"})
		s.Require().NoError(err)

		mine, err := s.svc.ListMine(s.ctx, s.org.ID, s.owner)
		s.Require().NoError(err)
		s.Require().Len(mine, 1)
		s.NotEqual(other.ID, mine[0].ID)

		all, err := s.svc.List(s.ctx, s.org.ID)
		s.Require().NoError(err)
		s.Len(all, 2)
	})
}
