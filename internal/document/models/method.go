package models

import (
	"regexp"
	"time"

	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
)

// Relationship is a W3C DID verification relationship tag.
type Relationship string

const (
	RelAuthentication       Relationship = "authentication"
	RelAssertionMethod      Relationship = "assertionMethod"
	RelKeyAgreement         Relationship = "keyAgreement"
	RelCapabilityInvocation Relationship = "capabilityInvocation"
	RelCapabilityDelegation Relationship = "capabilityDelegation"
)

// AllRelationships lists the valid tags in canonical document order.
var AllRelationships = []Relationship{
	RelAuthentication,
	RelAssertionMethod,
	RelKeyAgreement,
	RelCapabilityInvocation,
	RelCapabilityDelegation,
}

func (r Relationship) IsValid() bool {
	switch r {
	case RelAuthentication, RelAssertionMethod, RelKeyAgreement,
		RelCapabilityInvocation, RelCapabilityDelegation:
		return true
	}
	return false
}

// NormalizeRelationships validates tags and drops duplicates while
// preserving the caller's declared order.
func NormalizeRelationships(tags []Relationship) ([]Relationship, error) {
	seen := make(map[Relationship]bool, len(tags))
	out := make([]Relationship, 0, len(tags))
	for _, tag := range tags {
		if !tag.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "invalid relationship tag %q", tag)
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out, nil
}

// DefaultMethodType is the verification method type used when the caller
// does not specify one.
const DefaultMethodType = "JsonWebKey2020"

var fragmentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,62}$`)

// VerificationMethod links a document to a certificate under a fragment
// identifier. The fragment is unique per document; IsActive flips to
// false when the certificate is revoked or stays true until removal.
type VerificationMethod struct {
	ID            id.MethodID
	DocumentID    id.DocumentID
	CertificateID id.CertificateID
	Fragment      string
	MethodType    string
	Relationships []Relationship
	IsActive      bool
	CreatedAt     time.Time
}

// NewVerificationMethod validates and constructs an active method link.
func NewVerificationMethod(
	methodID id.MethodID,
	docID id.DocumentID,
	certID id.CertificateID,
	fragment string,
	methodType string,
	relationships []Relationship,
	now time.Time,
) (*VerificationMethod, error) {
	if !fragmentPattern.MatchString(fragment) {
		return nil, dErrors.New(dErrors.CodeValidation,
			"fragment must be 1-63 alphanumeric, hyphen, or underscore characters, starting alphanumeric")
	}
	if methodType == "" {
		methodType = DefaultMethodType
	}
	normalized, err := NormalizeRelationships(relationships)
	if err != nil {
		return nil, err
	}
	return &VerificationMethod{
		ID:            methodID,
		DocumentID:    docID,
		CertificateID: certID,
		Fragment:      fragment,
		MethodType:    methodType,
		Relationships: normalized,
		IsActive:      true,
		CreatedAt:     now,
	}, nil
}

// HasRelationship reports whether the method declares the tag.
func (m *VerificationMethod) HasRelationship(tag Relationship) bool {
	for _, r := range m.Relationships {
		if r == tag {
			return true
		}
	}
	return false
}

// IsEncryptionOnly reports whether the relationship set is exactly
// {keyAgreement}, which drives use="enc" during assembly.
func (m *VerificationMethod) IsEncryptionOnly() bool {
	return len(m.Relationships) == 1 && m.Relationships[0] == RelKeyAgreement
}
