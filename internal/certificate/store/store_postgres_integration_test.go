//go:build integration

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
	"annuaire/pkg/testutil/containers"
)

type CertificatePostgresSuite struct {
	suite.Suite

	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
	orgID id.OrgID
	user  id.UserID
}

func TestCertificatePostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(CertificatePostgresSuite))
}

func (s *CertificatePostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *CertificatePostgresSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"document_verification_methods", "certificate_versions", "certificates"))
	s.orgID = id.OrgID(uuid.New())
	s.user = id.UserID(uuid.New())
}

func (s *CertificatePostgresSuite) seed(label string) (*models.Certificate, *models.Version) {
	now := time.Now().UTC()
	cert, err := models.NewCertificate(id.CertificateID(uuid.New()), s.orgID, label, s.user, now)
	s.Require().NoError(err)
	version, err := models.NewVersion(
		id.CertificateVersionID(uuid.New()), cert.ID, 1, id.FileID(uuid.New()),
		testExtraction(), s.user, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, cert, version))
	return cert, version
}

func (s *CertificatePostgresSuite) TestCreateAndLookups() {
	s.Run("round-trips certificate and current version", func() {
		cert, first := s.seed("signing-key")

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(cert.Label, found.Label)
		s.Equal(first.ID, found.CurrentVersionID)

		current, err := s.store.CurrentVersion(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(1, current.VersionNumber)
		s.True(current.IsCurrent)
		s.Equal("EC", current.KeyType)
		s.Equal("P-256", current.PublicKeyJWK.Crv)
	})

	s.Run("finds by label case-insensitively", func() {
		cert, _ := s.seed("Prod-Signer")
		found, err := s.store.FindByLabel(s.ctx, s.orgID, "prod-signer")
		s.Require().NoError(err)
		s.Equal(cert.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown certificate", func() {
		_, err := s.store.FindByID(s.ctx, id.CertificateID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CertificatePostgresSuite) TestLabelUniqueness() {
	s.Run("unique index rejects duplicate label regardless of case", func() {
		s.seed("duplicate")

		now := time.Now().UTC()
		cert, err := models.NewCertificate(id.CertificateID(uuid.New()), s.orgID, "DUPLICATE", s.user, now)
		s.Require().NoError(err)
		version, err := models.NewVersion(
			id.CertificateVersionID(uuid.New()), cert.ID, 1, id.FileID(uuid.New()),
			testExtraction(), s.user, now)
		s.Require().NoError(err)
		s.ErrorIs(s.store.Create(s.ctx, cert, version), sentinel.ErrConflict)
	})

	s.Run("concurrent creates with the same label admit exactly one", func() {
		const writers = 10
		var wg sync.WaitGroup
		results := make(chan error, writers)
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				now := time.Now().UTC()
				cert, err := models.NewCertificate(id.CertificateID(uuid.New()), s.orgID, "contended-label", s.user, now)
				if err != nil {
					results <- err
					return
				}
				version, err := models.NewVersion(
					id.CertificateVersionID(uuid.New()), cert.ID, 1, id.FileID(uuid.New()),
					testExtraction(), s.user, now)
				if err != nil {
					results <- err
					return
				}
				results <- s.store.Create(s.ctx, cert, version)
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				s.ErrorIs(err, sentinel.ErrConflict)
			}
		}
		s.Equal(1, succeeded)
	})
}

func (s *CertificatePostgresSuite) TestAppendVersion() {
	s.Run("concurrent rotations allocate distinct version numbers", func() {
		cert, _ := s.seed("contended")

		const writers = 10
		var wg sync.WaitGroup
		wg.Add(writers)
		for i := 0; i < writers; i++ {
			go func() {
				defer wg.Done()
				_, err := s.store.AppendVersion(s.ctx, cert.ID,
					func(_ *models.Certificate, current *models.Version) (*models.Version, error) {
						return models.NewVersion(
							id.CertificateVersionID(uuid.New()), cert.ID, current.VersionNumber+1,
							id.FileID(uuid.New()), testExtraction(), s.user, time.Now().UTC())
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

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		current, err := s.store.CurrentVersion(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(found.CurrentVersionID, current.ID)
		s.Equal(writers+1, current.VersionNumber)
	})

	s.Run("build error rolls the transaction back", func() {
		cert, first := s.seed("unchanged")

		_, err := s.store.AppendVersion(s.ctx, cert.ID,
			func(_ *models.Certificate, _ *models.Version) (*models.Version, error) {
				return nil, sentinel.ErrInvalidState
			})
		s.ErrorIs(err, sentinel.ErrInvalidState)

		current, err := s.store.CurrentVersion(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(first.ID, current.ID)
	})
}

func (s *CertificatePostgresSuite) TestExecute() {
	s.Run("persists revocation", func() {
		cert, _ := s.seed("revocable")

		updated, err := s.store.Execute(s.ctx, cert.ID,
			func(c *models.Certificate) error { return c.CanRevoke() },
			func(c *models.Certificate) { c.ApplyRevocation(time.Now().UTC()) })
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, updated.Status)

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, found.Status)
	})

	s.Run("validation error aborts without side effects", func() {
		cert, _ := s.seed("guarded")

		_, err := s.store.Execute(s.ctx, cert.ID,
			func(_ *models.Certificate) error { return sentinel.ErrInvalidState },
			func(_ *models.Certificate) { s.Fail("mutate must not run") })
		s.ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, found.Status)
	})
}
