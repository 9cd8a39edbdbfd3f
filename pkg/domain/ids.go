// Package domain holds typed identifiers shared across services.
//
// Each entity family gets its own uuid-backed type so a CertificateID can
// never be passed where a DocumentID is expected. Construct from external
// input via the Parse functions, which enforce non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "annuaire/pkg/domain-errors"
)

type (
	// OrgID identifies an organization.
	OrgID uuid.UUID
	// UserID identifies a platform user.
	UserID uuid.UUID
	// CertificateID identifies a certificate (the stable identity).
	CertificateID uuid.UUID
	// CertificateVersionID identifies one immutable certificate snapshot.
	CertificateVersionID uuid.UUID
	// DocumentID identifies a DID document.
	DocumentID uuid.UUID
	// DocumentVersionID identifies one published document snapshot.
	DocumentVersionID uuid.UUID
	// MethodID identifies a document verification method link.
	MethodID uuid.UUID
	// FileID references a stored blob in the external file store.
	FileID uuid.UUID
)

func (id OrgID) String() string                { return uuid.UUID(id).String() }
func (id UserID) String() string               { return uuid.UUID(id).String() }
func (id CertificateID) String() string        { return uuid.UUID(id).String() }
func (id CertificateVersionID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string           { return uuid.UUID(id).String() }
func (id DocumentVersionID) String() string    { return uuid.UUID(id).String() }
func (id MethodID) String() string             { return uuid.UUID(id).String() }
func (id FileID) String() string               { return uuid.UUID(id).String() }

func (id OrgID) IsZero() bool                { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool               { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CertificateVersionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsZero() bool           { return uuid.UUID(id) == uuid.Nil }
func (id DocumentVersionID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MethodID) IsZero() bool             { return uuid.UUID(id) == uuid.Nil }
func (id FileID) IsZero() bool               { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseOrgID constructs an OrgID from external input.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parseUUID(s)
	return OrgID(u), err
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseCertificateID constructs a CertificateID from external input.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s)
	return CertificateID(u), err
}

// ParseDocumentID constructs a DocumentID from external input.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s)
	return DocumentID(u), err
}

// ParseMethodID constructs a MethodID from external input.
func ParseMethodID(s string) (MethodID, error) {
	u, err := parseUUID(s)
	return MethodID(u), err
}
