package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"annuaire/internal/document/models"
	id "annuaire/pkg/domain"
	"annuaire/pkg/platform/sentinel"
)

type labelKey struct {
	orgID   id.OrgID
	ownerID id.UserID
	label   string
}

// InMemory keeps documents in maps guarded by a single mutex spanning
// every callback, matching the serialization the Postgres row lock gives.
type InMemory struct {
	mu       sync.RWMutex
	docs     map[id.DocumentID]*models.Document
	methods  map[id.DocumentID][]*models.VerificationMethod
	versions map[id.DocumentID][]*models.Version
	labels   map[labelKey]id.DocumentID
}

// NewInMemory constructs an empty in-memory document store.
func NewInMemory() *InMemory {
	return &InMemory{
		docs:     make(map[id.DocumentID]*models.Document),
		methods:  make(map[id.DocumentID][]*models.VerificationMethod),
		versions: make(map[id.DocumentID][]*models.Version),
		labels:   make(map[labelKey]id.DocumentID),
	}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := labelKey{doc.OrgID, doc.OwnerID, doc.Label}
	if _, taken := s.labels[key]; taken {
		return sentinel.ErrConflict
	}
	s.labels[key] = doc.ID
	s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *InMemory) FindPublishedByDIDURI(_ context.Context, didURI string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.DIDURI == didURI &&
			(doc.Status == models.StatusPublished || doc.Status == models.StatusDeactivated) {
			return cloneDoc(doc), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByOrg(_ context.Context, orgID id.OrgID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.OrgID == orgID {
			out = append(out, cloneDoc(doc))
		}
	}
	sortDocsNewestFirst(out)
	return out, nil
}

func (s *InMemory) ListByOwner(_ context.Context, orgID id.OrgID, ownerID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.OrgID == orgID && doc.OwnerID == ownerID {
			out = append(out, cloneDoc(doc))
		}
	}
	sortDocsNewestFirst(out)
	return out, nil
}

func (s *InMemory) Execute(
	_ context.Context,
	docID id.DocumentID,
	validate func(doc *models.Document, methods []*models.VerificationMethod) error,
	mutate func(doc *models.Document),
) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneDoc(doc)
	if err := validate(working, s.cloneMethodsLocked(docID)); err != nil {
		return nil, err
	}
	mutate(working)
	s.docs[docID] = working
	return cloneDoc(working), nil
}

func (s *InMemory) ListMethods(_ context.Context, docID id.DocumentID) ([]*models.VerificationMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[docID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.cloneMethodsLocked(docID), nil
}

func (s *InMemory) AddMethod(
	_ context.Context,
	docID id.DocumentID,
	build func(doc *models.Document, methods []*models.VerificationMethod) (*MethodChange, error),
) (*models.VerificationMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	change, err := build(cloneDoc(doc), s.cloneMethodsLocked(docID))
	if err != nil {
		return nil, err
	}
	for _, existing := range s.methods[docID] {
		if existing.Fragment == change.Method.Fragment {
			return nil, sentinel.ErrConflict
		}
	}

	vm := cloneMethod(change.Method)
	s.methods[docID] = append(s.methods[docID], vm)
	doc.DraftContent = change.Draft
	doc.UpdatedAt = vm.CreatedAt
	return cloneMethod(vm), nil
}

func (s *InMemory) RemoveMethod(
	_ context.Context,
	docID id.DocumentID,
	fragment string,
	check func(doc *models.Document, method *models.VerificationMethod, remaining []*models.VerificationMethod) (json.RawMessage, error),
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return sentinel.ErrNotFound
	}
	methods := s.methods[docID]
	index := -1
	for i, vm := range methods {
		if vm.Fragment == fragment {
			index = i
			break
		}
	}
	if index < 0 {
		return sentinel.ErrNotFound
	}

	remaining := make([]*models.VerificationMethod, 0, len(methods)-1)
	for i, vm := range methods {
		if i != index {
			remaining = append(remaining, cloneMethod(vm))
		}
	}
	draft, err := check(cloneDoc(doc), cloneMethod(methods[index]), remaining)
	if err != nil {
		return err
	}

	s.methods[docID] = append(methods[:index], methods[index+1:]...)
	doc.DraftContent = draft
	return nil
}

func (s *InMemory) Publish(
	_ context.Context,
	docID id.DocumentID,
	fn func(doc *models.Document, methods []*models.VerificationMethod, current *models.Version) (*models.Version, error),
) (*models.Document, *models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}

	var current *models.Version
	if v := s.currentVersionLocked(docID); v != nil {
		current = cloneVersion(v)
	}

	built, err := fn(cloneDoc(doc), s.cloneMethodsLocked(docID), current)
	if err != nil {
		return nil, nil, err
	}

	version := cloneVersion(built)
	s.versions[docID] = append(s.versions[docID], version)

	published := cloneDoc(doc)
	published.ApplyPublication(version.Content, version.ID, version.PublishedAt)
	s.docs[docID] = published

	return cloneDoc(published), cloneVersion(version), nil
}

func (s *InMemory) ListVersions(_ context.Context, docID id.DocumentID) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[docID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	versions := s.versions[docID]
	out := make([]*models.Version, 0, len(versions))
	for _, v := range versions {
		out = append(out, cloneVersion(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (s *InMemory) CurrentVersion(_ context.Context, docID id.DocumentID) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.currentVersionLocked(docID)
	if v == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneVersion(v), nil
}

func (s *InMemory) DeactivateByCertificate(_ context.Context, certID id.CertificateID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	affected := 0
	for _, methods := range s.methods {
		for _, vm := range methods {
			if vm.CertificateID == certID && vm.IsActive {
				vm.IsActive = false
				affected++
			}
		}
	}
	return affected, nil
}

func (s *InMemory) currentVersionLocked(docID id.DocumentID) *models.Version {
	var current *models.Version
	for _, v := range s.versions[docID] {
		if current == nil || v.VersionNumber > current.VersionNumber {
			current = v
		}
	}
	return current
}

func (s *InMemory) cloneMethodsLocked(docID id.DocumentID) []*models.VerificationMethod {
	methods := s.methods[docID]
	out := make([]*models.VerificationMethod, 0, len(methods))
	for _, vm := range methods {
		out = append(out, cloneMethod(vm))
	}
	return out
}

func sortDocsNewestFirst(docs []*models.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
}

func cloneDoc(d *models.Document) *models.Document {
	cp := *d
	if d.DraftContent != nil {
		cp.DraftContent = append(json.RawMessage(nil), d.DraftContent...)
	}
	if d.Content != nil {
		cp.Content = append(json.RawMessage(nil), d.Content...)
	}
	if d.SubmittedBy != nil {
		v := *d.SubmittedBy
		cp.SubmittedBy = &v
	}
	if d.SubmittedAt != nil {
		t := *d.SubmittedAt
		cp.SubmittedAt = &t
	}
	if d.ReviewedBy != nil {
		v := *d.ReviewedBy
		cp.ReviewedBy = &v
	}
	if d.ReviewedAt != nil {
		t := *d.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

func cloneMethod(m *models.VerificationMethod) *models.VerificationMethod {
	cp := *m
	cp.Relationships = append([]models.Relationship(nil), m.Relationships...)
	return &cp
}

func cloneVersion(v *models.Version) *models.Version {
	cp := *v
	if v.Content != nil {
		cp.Content = append(json.RawMessage(nil), v.Content...)
	}
	if v.RegistrarResponse != nil {
		cp.RegistrarResponse = append(json.RawMessage(nil), v.RegistrarResponse...)
	}
	return &cp
}
