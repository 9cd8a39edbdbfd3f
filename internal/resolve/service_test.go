package resolve_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"annuaire/internal/audit"
	"annuaire/internal/document/models"
	"annuaire/internal/resolve"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/platform/sentinel"
)

type fakeFinder struct {
	docs  map[string]*models.Document
	calls int
}

func (f *fakeFinder) FindPublishedByDIDURI(_ context.Context, didURI string) (*models.Document, error) {
	f.calls++
	doc, ok := f.docs[didURI]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc, nil
}

type ResolveSuite struct {
	suite.Suite

	ctx      context.Context
	finder   *fakeFinder
	cache    *resolve.MemoryCache
	auditLog *audit.InMemoryStore
	svc      *resolve.Service
}

func TestResolveSuite(t *testing.T) {
	suite.Run(t, new(ResolveSuite))
}

func (s *ResolveSuite) SetupTest() {
	s.ctx = context.Background()
	s.finder = &fakeFinder{docs: make(map[string]*models.Document)}
	s.cache = resolve.NewMemoryCache(time.Minute)
	s.auditLog = audit.NewInMemoryStore()
	s.svc = resolve.New(s.finder, s.cache,
		resolve.WithAuditPublisher(audit.NewPublisher(s.auditLog)))
}

func (s *ResolveSuite) seedPublished(didURI string, status models.Status) *models.Document {
	doc := &models.Document{
		ID:      id.DocumentID(uuid.New()),
		OrgID:   id.OrgID(uuid.New()),
		DIDURI:  didURI,
		Status:  status,
		Content: json.RawMessage(`{"id":"` + didURI + `"}`),
	}
	s.finder.docs[didURI] = doc
	return doc
}

func (s *ResolveSuite) TestResolve() {
	const didURI = "did:web:example.com:acme:alice:corp-auth"

	s.Run("returns published content", func() {
		s.SetupTest()
		s.seedPublished(didURI, models.StatusPublished)

		resolution, err := s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)
		s.Equal(didURI, resolution.DIDURI)
		s.False(resolution.Deactivated)
		s.JSONEq(`{"id":"`+didURI+`"}`, string(resolution.Document))
	})

	s.Run("serves repeat lookups from the cache", func() {
		s.SetupTest()
		s.seedPublished(didURI, models.StatusPublished)

		_, err := s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)
		_, err = s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)
		s.Equal(1, s.finder.calls)
	})

	s.Run("flags deactivated documents", func() {
		s.SetupTest()
		s.seedPublished(didURI, models.StatusDeactivated)

		resolution, err := s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)
		s.True(resolution.Deactivated)
		s.NotEmpty(resolution.Document)
	})

	s.Run("unknown DIDs are not found", func() {
		s.SetupTest()
		_, err := s.svc.Resolve(s.ctx, "did:web:example.com:acme:alice:missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty URI is a validation error", func() {
		s.SetupTest()
		_, err := s.svc.Resolve(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalidate forces the next lookup back to the store", func() {
		s.SetupTest()
		s.seedPublished(didURI, models.StatusPublished)

		_, err := s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)
		s.svc.Invalidate(s.ctx, didURI)
		_, err = s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)
		s.Equal(2, s.finder.calls)
	})

	s.Run("emits a resolution audit event on store lookups", func() {
		s.SetupTest()
		doc := s.seedPublished(didURI, models.StatusPublished)

		_, err := s.svc.Resolve(s.ctx, didURI)
		s.Require().NoError(err)

		events, err := s.auditLog.ListByResource(s.ctx, audit.ResourceDocument, doc.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionDIDResolved, events[0].Action)
	})
}
