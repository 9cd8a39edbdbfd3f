package models

import (
	"time"

	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
)

// JWK is the JSON Web Key representation of an extracted public key.
// Only the members this platform produces are modeled; private-key members
// never enter the system.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
}

func (k JWK) IsZero() bool {
	return k == JWK{}
}

// Version is an immutable certificate snapshot created on upload or
// rotation. Everything except IsCurrent is frozen at creation; IsCurrent
// flips to false exactly when a newer version becomes current.
type Version struct {
	ID            id.CertificateVersionID
	CertificateID id.CertificateID
	VersionNumber int
	FileID        id.FileID

	PublicKeyJWK JWK

	SubjectDN      string
	IssuerDN       string
	SerialNumber   string
	NotValidBefore *time.Time
	NotValidAfter  *time.Time

	KeyType  string
	KeyCurve string
	KeySize  int

	FingerprintSHA256 string

	IsCurrent  bool
	UploadedBy id.UserID
	CreatedAt  time.Time
}

// NewVersion constructs a version snapshot from extracted metadata.
// VersionNumber allocation is the store's responsibility; the constructor
// only validates what it is given.
func NewVersion(
	versionID id.CertificateVersionID,
	certID id.CertificateID,
	number int,
	fileID id.FileID,
	extraction ExtractionResult,
	uploadedBy id.UserID,
	now time.Time,
) (*Version, error) {
	if number < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version number must be positive")
	}
	if extraction.PublicKeyJWK.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "extraction result carries no public key")
	}
	return &Version{
		ID:                versionID,
		CertificateID:     certID,
		VersionNumber:     number,
		FileID:            fileID,
		PublicKeyJWK:      extraction.PublicKeyJWK,
		SubjectDN:         extraction.SubjectDN,
		IssuerDN:          extraction.IssuerDN,
		SerialNumber:      extraction.SerialNumber,
		NotValidBefore:    extraction.NotValidBefore,
		NotValidAfter:     extraction.NotValidAfter,
		KeyType:           extraction.KeyType,
		KeyCurve:          extraction.KeyCurve,
		KeySize:           extraction.KeySize,
		FingerprintSHA256: extraction.FingerprintSHA256,
		IsCurrent:         true,
		UploadedBy:        uploadedBy,
		CreatedAt:         now,
	}, nil
}
