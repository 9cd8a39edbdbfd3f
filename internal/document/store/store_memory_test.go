package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"annuaire/internal/document/models"
	"annuaire/internal/document/store"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/platform/sentinel"
)

type DocumentStoreSuite struct {
	suite.Suite

	ctx   context.Context
	store *store.InMemory
	now   time.Time

	orgID   id.OrgID
	ownerID id.UserID
}

func TestDocumentStoreSuite(t *testing.T) {
	suite.Run(t, new(DocumentStoreSuite))
}

func (s *DocumentStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.orgID = id.OrgID(uuid.New())
	s.ownerID = id.UserID(uuid.New())
}

func (s *DocumentStoreSuite) newDocument(label string) *models.Document {
	doc, err := models.NewDocument(id.DocumentID(uuid.New()), s.orgID, s.ownerID, label,
		"did:web:example.com:acme:owner:"+label, s.now)
	s.Require().NoError(err)
	return doc
}

func (s *DocumentStoreSuite) createDocument(label string) *models.Document {
	doc := s.newDocument(label)
	s.Require().NoError(s.store.Create(s.ctx, doc))
	return doc
}

func (s *DocumentStoreSuite) addMethod(docID id.DocumentID, certID id.CertificateID, fragment string) *models.VerificationMethod {
	vm, err := models.NewVerificationMethod(id.MethodID(uuid.New()), docID, certID,
		fragment, "", []models.Relationship{models.RelAuthentication}, s.now)
	s.Require().NoError(err)
	added, err := s.store.AddMethod(s.ctx, docID,
		func(_ *models.Document, _ []*models.VerificationMethod) (*store.MethodChange, error) {
			return &store.MethodChange{Method: vm, Draft: json.RawMessage(`{"id":"x"}`)}, nil
		})
	s.Require().NoError(err)
	return added
}

func (s *DocumentStoreSuite) publish(docID id.DocumentID, publishedBy id.UserID) *models.Version {
	_, version, err := s.store.Publish(s.ctx, docID,
		func(doc *models.Document, _ []*models.VerificationMethod, current *models.Version) (*models.Version, error) {
			next := 1
			if current != nil {
				next = current.VersionNumber + 1
			}
			return models.NewVersion(id.DocumentVersionID(uuid.New()), doc.ID, next,
				json.RawMessage(`{"id":"`+doc.DIDURI+`"}`), "jws", nil, publishedBy, s.now)
		})
	s.Require().NoError(err)
	return version
}

func (s *DocumentStoreSuite) TestCreate() {
	s.Run("rejects a duplicate label per org and owner", func() {
		s.SetupTest()
		s.createDocument("corp-auth")
		err := s.store.Create(s.ctx, s.newDocument("corp-auth"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows the same label for a different owner", func() {
		s.SetupTest()
		s.createDocument("corp-auth")
		other, err := models.NewDocument(id.DocumentID(uuid.New()), s.orgID, id.UserID(uuid.New()),
			"corp-auth", "did:web:example.com:acme:other:corp-auth", s.now)
		s.Require().NoError(err)
		s.NoError(s.store.Create(s.ctx, other))
	})
}

func (s *DocumentStoreSuite) TestMethods() {
	s.Run("add rejects a duplicate fragment", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		certID := id.CertificateID(uuid.New())
		s.addMethod(doc.ID, certID, "key-1")

		vm, err := models.NewVerificationMethod(id.MethodID(uuid.New()), doc.ID, certID,
			"key-1", "", nil, s.now)
		s.Require().NoError(err)
		_, err = s.store.AddMethod(s.ctx, doc.ID,
			func(_ *models.Document, _ []*models.VerificationMethod) (*store.MethodChange, error) {
				return &store.MethodChange{Method: vm, Draft: json.RawMessage(`{}`)}, nil
			})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("build error leaves nothing linked", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		_, err := s.store.AddMethod(s.ctx, doc.ID,
			func(_ *models.Document, _ []*models.VerificationMethod) (*store.MethodChange, error) {
				return nil, dErrors.New(dErrors.CodeValidation, "nope")
			})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		methods, err := s.store.ListMethods(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Empty(methods)
	})

	s.Run("add stages the returned draft", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		s.addMethod(doc.ID, id.CertificateID(uuid.New()), "key-1")

		stored, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.JSONEq(`{"id":"x"}`, string(stored.DraftContent))
	})

	s.Run("remove of an unknown fragment is not found", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		err := s.store.RemoveMethod(s.ctx, doc.ID, "nope",
			func(_ *models.Document, _ *models.VerificationMethod, _ []*models.VerificationMethod) (json.RawMessage, error) {
				return nil, nil
			})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("remove check error keeps the method", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		s.addMethod(doc.ID, id.CertificateID(uuid.New()), "key-1")

		err := s.store.RemoveMethod(s.ctx, doc.ID, "key-1",
			func(_ *models.Document, _ *models.VerificationMethod, _ []*models.VerificationMethod) (json.RawMessage, error) {
				return nil, dErrors.New(dErrors.CodeValidation, "nope")
			})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		methods, err := s.store.ListMethods(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Len(methods, 1)
	})
}

func (s *DocumentStoreSuite) TestPublish() {
	s.Run("appends a version and promotes the draft atomically", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		version := s.publish(doc.ID, s.ownerID)
		s.Equal(1, version.VersionNumber)

		stored, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPublished, stored.Status)
		s.Equal(version.ID, stored.CurrentVersionID)
		s.Equal(string(version.Content), string(stored.Content))
		s.Empty(stored.DraftContent)
	})

	s.Run("numbers versions from the current one", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		s.publish(doc.ID, s.ownerID)
		second := s.publish(doc.ID, s.ownerID)
		s.Equal(2, second.VersionNumber)

		current, err := s.store.CurrentVersion(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(2, current.VersionNumber)

		versions, err := s.store.ListVersions(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Require().Len(versions, 2)
		s.Equal(2, versions[0].VersionNumber)
	})

	s.Run("callback error leaves the document and history untouched", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		_, _, err := s.store.Publish(s.ctx, doc.ID,
			func(_ *models.Document, _ []*models.VerificationMethod, _ *models.Version) (*models.Version, error) {
				return nil, dErrors.New(dErrors.CodeExternalService, "registrar down")
			})
		s.True(dErrors.HasCode(err, dErrors.CodeExternalService))

		stored, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, stored.Status)
		versions, err := s.store.ListVersions(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Empty(versions)
	})
}

func (s *DocumentStoreSuite) TestExecute() {
	s.Run("persists the mutation", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		actor := id.Actor{ID: s.ownerID}
		updated, err := s.store.Execute(s.ctx, doc.ID,
			func(d *models.Document, _ []*models.VerificationMethod) error { return d.CanSubmit(actor) },
			func(d *models.Document) { d.ApplySubmit(actor, s.now) })
		s.Require().NoError(err)
		s.Equal(models.StatusPendingReview, updated.Status)
	})

	s.Run("validation error aborts without side effects", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")
		_, err := s.store.Execute(s.ctx, doc.ID,
			func(_ *models.Document, _ []*models.VerificationMethod) error {
				return dErrors.New(dErrors.CodeForbidden, "nope")
			},
			func(d *models.Document) { d.Status = models.StatusPublished })
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		stored, err := s.store.FindByID(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, stored.Status)
	})
}

func (s *DocumentStoreSuite) TestDeactivateByCertificate() {
	s.Run("flips active references across documents and counts them", func() {
		s.SetupTest()
		certID := id.CertificateID(uuid.New())
		otherCert := id.CertificateID(uuid.New())

		first := s.createDocument("doc-one")
		second := s.createDocument("doc-two")
		s.addMethod(first.ID, certID, "key-1")
		s.addMethod(first.ID, otherCert, "key-2")
		s.addMethod(second.ID, certID, "key-1")

		affected, err := s.store.DeactivateByCertificate(s.ctx, certID)
		s.Require().NoError(err)
		s.Equal(2, affected)

		methods, err := s.store.ListMethods(s.ctx, first.ID)
		s.Require().NoError(err)
		for _, vm := range methods {
			if vm.CertificateID == certID {
				s.False(vm.IsActive)
			} else {
				s.True(vm.IsActive)
			}
		}

		// Already-inactive rows do not count twice.
		affected, err = s.store.DeactivateByCertificate(s.ctx, certID)
		s.Require().NoError(err)
		s.Zero(affected)
	})
}

func (s *DocumentStoreSuite) TestResolutionLookup() {
	s.Run("finds published and deactivated documents by DID URI", func() {
		s.SetupTest()
		doc := s.createDocument("corp-auth")

		_, err := s.store.FindPublishedByDIDURI(s.ctx, doc.DIDURI)
		s.ErrorIs(err, sentinel.ErrNotFound)

		s.publish(doc.ID, s.ownerID)
		found, err := s.store.FindPublishedByDIDURI(s.ctx, doc.DIDURI)
		s.Require().NoError(err)
		s.Equal(doc.ID, found.ID)

		_, err = s.store.Execute(s.ctx, doc.ID,
			func(_ *models.Document, _ []*models.VerificationMethod) error { return nil },
			func(d *models.Document) { d.ApplyDeactivation(s.now) })
		s.Require().NoError(err)

		found, err = s.store.FindPublishedByDIDURI(s.ctx, doc.DIDURI)
		s.Require().NoError(err)
		s.Equal(models.StatusDeactivated, found.Status)
	})
}
