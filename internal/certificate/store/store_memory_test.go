package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"annuaire/internal/certificate/models"
	id "annuaire/pkg/domain"
	"annuaire/pkg/platform/sentinel"
)

type CertificateStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	orgID id.OrgID
	user  id.UserID
}

func (s *CertificateStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.orgID = id.OrgID(uuid.New())
	s.user = id.UserID(uuid.New())
}

func TestCertificateStoreSuite(t *testing.T) {
	suite.Run(t, new(CertificateStoreSuite))
}

func (s *CertificateStoreSuite) newCertificate(label string) (*models.Certificate, *models.Version) {
	now := time.Now()
	cert, err := models.NewCertificate(id.CertificateID(uuid.New()), s.orgID, label, s.user, now)
	s.Require().NoError(err)
	version, err := models.NewVersion(
		id.CertificateVersionID(uuid.New()), cert.ID, 1, id.FileID(uuid.New()),
		testExtraction(), s.user, now)
	s.Require().NoError(err)
	return cert, version
}

func testExtraction() models.ExtractionResult {
	return models.ExtractionResult{
		SubjectDN:         "CN=signer,O=Example",
		IssuerDN:          "CN=Example CA",
		SerialNumber:      "0A1B2C",
		KeyType:           "EC",
		KeyCurve:          "P-256",
		FingerprintSHA256: "aa:bb:cc",
		PublicKeyJWK:      models.JWK{Kty: "EC", Crv: "P-256", X: "x", Y: "y"},
	}
}

func (s *CertificateStoreSuite) TestCreateAndLookups() {
	s.Run("creates certificate with first version current", func() {
		cert, first := s.newCertificate("signing-key")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(first.ID, found.CurrentVersionID)

		current, err := s.store.CurrentVersion(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(1, current.VersionNumber)
		s.True(current.IsCurrent)
	})

	s.Run("finds by label case-insensitively", func() {
		cert, first := s.newCertificate("Prod-Signer")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		found, err := s.store.FindByLabel(s.ctx, s.orgID, "prod-signer")
		s.Require().NoError(err)
		s.Equal(cert.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown certificate", func() {
		_, err := s.store.FindByID(s.ctx, id.CertificateID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CertificateStoreSuite) TestLabelUniqueness() {
	s.Run("rejects duplicate label in same org", func() {
		cert1, v1 := s.newCertificate("duplicate")
		s.Require().NoError(s.store.Create(s.ctx, cert1, v1))

		cert2, v2 := s.newCertificate("DUPLICATE")
		err := s.store.Create(s.ctx, cert2, v2)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows same label across orgs", func() {
		cert1, v1 := s.newCertificate("shared-label")
		s.Require().NoError(s.store.Create(s.ctx, cert1, v1))

		otherOrg := id.OrgID(uuid.New())
		cert2, v2 := s.newCertificate("shared-label")
		cert2.OrgID = otherOrg
		v2.CertificateID = cert2.ID
		s.Require().NoError(s.store.Create(s.ctx, cert2, v2))
	})
}

func (s *CertificateStoreSuite) TestAppendVersion() {
	s.Run("archives old current and repoints", func() {
		cert, first := s.newCertificate("rotating")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		built, err := s.store.AppendVersion(s.ctx, cert.ID,
			func(_ *models.Certificate, current *models.Version) (*models.Version, error) {
				s.Require().NotNil(current)
				return models.NewVersion(
					id.CertificateVersionID(uuid.New()), cert.ID, current.VersionNumber+1,
					id.FileID(uuid.New()), testExtraction(), s.user, time.Now())
			})
		s.Require().NoError(err)
		s.Equal(2, built.VersionNumber)

		versions, err := s.store.ListVersions(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Require().Len(versions, 2)

		currentCount := 0
		for _, v := range versions {
			if v.IsCurrent {
				currentCount++
				s.Equal(built.ID, v.ID)
			}
		}
		s.Equal(1, currentCount)

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(built.ID, found.CurrentVersionID)
	})

	s.Run("build error leaves store untouched", func() {
		cert, first := s.newCertificate("unchanged")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		_, err := s.store.AppendVersion(s.ctx, cert.ID,
			func(_ *models.Certificate, _ *models.Version) (*models.Version, error) {
				return nil, sentinel.ErrInvalidState
			})
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		current, err := s.store.CurrentVersion(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(first.ID, current.ID)
	})

	s.Run("concurrent rotations allocate distinct version numbers", func() {
		cert, first := s.newCertificate("contended")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		const writers = 8
		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				_, err := s.store.AppendVersion(s.ctx, cert.ID,
					func(_ *models.Certificate, current *models.Version) (*models.Version, error) {
						return models.NewVersion(
							id.CertificateVersionID(uuid.New()), cert.ID, current.VersionNumber+1,
							id.FileID(uuid.New()), testExtraction(), s.user, time.Now())
					})
				s.NoError(err)
			}()
		}
		wg.Wait()

		versions, err := s.store.ListVersions(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Require().Len(versions, writers+1)

		seen := make(map[int]bool)
		currentCount := 0
		for _, v := range versions {
			s.False(seen[v.VersionNumber], "version number %d allocated twice", v.VersionNumber)
			seen[v.VersionNumber] = true
			if v.IsCurrent {
				currentCount++
			}
		}
		s.Equal(1, currentCount)
	})
}

func (s *CertificateStoreSuite) TestExecute() {
	s.Run("persists mutation after validation", func() {
		cert, first := s.newCertificate("revocable")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		updated, err := s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { return c.CanRevoke() },
			func(c *models.Certificate) { c.ApplyRevocation(time.Now()) })
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, updated.Status)

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, found.Status)
	})

	s.Run("validation error aborts without side effects", func() {
		cert, first := s.newCertificate("guarded")
		s.Require().NoError(s.store.Create(s.ctx, cert, first))

		_, err := s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { c.ApplyRevocation(time.Now()); return c.CanRevoke() },
			func(c *models.Certificate) { s.Fail("mutate must not run") })
		s.Require().Error(err)

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, found.Status)
	})
}

func (s *CertificateStoreSuite) TestListings() {
	s.Run("scopes by org and uploader", func() {
		mine, v1 := s.newCertificate("mine")
		s.Require().NoError(s.store.Create(s.ctx, mine, v1))

		other, v2 := s.newCertificate("theirs")
		other.CreatedBy = id.UserID(uuid.New())
		s.Require().NoError(s.store.Create(s.ctx, other, v2))

		all, err := s.store.ListByOrg(s.ctx, s.orgID)
		s.Require().NoError(err)
		s.Len(all, 2)

		own, err := s.store.ListByUploader(s.ctx, s.orgID, s.user)
		s.Require().NoError(err)
		s.Require().Len(own, 1)
		s.Equal(mine.ID, own[0].ID)
	})
}
