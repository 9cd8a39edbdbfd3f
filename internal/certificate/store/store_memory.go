package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"annuaire/internal/certificate/models"
	id "annuaire/pkg/domain"
	"annuaire/pkg/platform/sentinel"
)

// InMemory keeps certificates in maps guarded by a single mutex. The mutex
// spans every validate/build callback, which gives the same serialization
// guarantee the Postgres row lock provides.
type InMemory struct {
	mu       sync.RWMutex
	certs    map[id.CertificateID]*models.Certificate
	versions map[id.CertificateID][]*models.Version
	labels   map[id.OrgID]map[string]id.CertificateID
}

// NewInMemory constructs an empty in-memory certificate store.
func NewInMemory() *InMemory {
	return &InMemory{
		certs:    make(map[id.CertificateID]*models.Certificate),
		versions: make(map[id.CertificateID][]*models.Version),
		labels:   make(map[id.OrgID]map[string]id.CertificateID),
	}
}

func labelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func (s *InMemory) Create(_ context.Context, cert *models.Certificate, first *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orgLabels := s.labels[cert.OrgID]
	if orgLabels == nil {
		orgLabels = make(map[string]id.CertificateID)
		s.labels[cert.OrgID] = orgLabels
	}
	key := labelKey(cert.Label)
	if _, taken := orgLabels[key]; taken {
		return sentinel.ErrConflict
	}

	c := cloneCert(cert)
	v := cloneVersion(first)
	c.CurrentVersionID = v.ID

	orgLabels[key] = c.ID
	s.certs[c.ID] = c
	s.versions[c.ID] = []*models.Version{v}

	cert.CurrentVersionID = v.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCert(cert), nil
}

func (s *InMemory) FindByLabel(_ context.Context, orgID id.OrgID, label string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certID, ok := s.labels[orgID][labelKey(label)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCert(s.certs[certID]), nil
}

func (s *InMemory) ListByOrg(_ context.Context, orgID id.OrgID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, cert := range s.certs {
		if cert.OrgID == orgID {
			out = append(out, cloneCert(cert))
		}
	}
	sortCertsNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListByUploader(_ context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Certificate
	for _, cert := range s.certs {
		if cert.OrgID == orgID && cert.CreatedBy == userID {
			out = append(out, cloneCert(cert))
		}
	}
	sortCertsNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListVersions(_ context.Context, certID id.CertificateID) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.certs[certID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	versions := s.versions[certID]
	out := make([]*models.Version, 0, len(versions))
	for _, v := range versions {
		out = append(out, cloneVersion(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (s *InMemory) CurrentVersion(_ context.Context, certID id.CertificateID) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.currentVersionLocked(certID)
	if v == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneVersion(v), nil
}

func (s *InMemory) AppendVersion(
	_ context.Context,
	certID id.CertificateID,
	build func(cert *models.Certificate, current *models.Version) (*models.Version, error),
) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	current := s.currentVersionLocked(certID)

	var currentCopy *models.Version
	if current != nil {
		currentCopy = cloneVersion(current)
	}
	built, err := build(cloneCert(cert), currentCopy)
	if err != nil {
		return nil, err
	}

	if current != nil {
		current.IsCurrent = false
	}
	v := cloneVersion(built)
	s.versions[certID] = append(s.versions[certID], v)
	cert.CurrentVersionID = v.ID
	cert.UpdatedAt = v.CreatedAt

	return cloneVersion(v), nil
}

func (s *InMemory) Execute(
	_ context.Context,
	certID id.CertificateID,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneCert(cert)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.certs[certID] = working
	return cloneCert(working), nil
}

func (s *InMemory) currentVersionLocked(certID id.CertificateID) *models.Version {
	for _, v := range s.versions[certID] {
		if v.IsCurrent {
			return v
		}
	}
	return nil
}

func sortCertsNewestFirst(certs []*models.Certificate) {
	sort.Slice(certs, func(i, j int) bool { return certs[i].CreatedAt.After(certs[j].CreatedAt) })
}

func cloneCert(c *models.Certificate) *models.Certificate {
	cp := *c
	return &cp
}

func cloneVersion(v *models.Version) *models.Version {
	cp := *v
	if v.NotValidBefore != nil {
		t := *v.NotValidBefore
		cp.NotValidBefore = &t
	}
	if v.NotValidAfter != nil {
		t := *v.NotValidAfter
		cp.NotValidAfter = &t
	}
	return &cp
}
