package models

import (
	"strings"
	"time"

	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
)

// Status is the lifecycle state of a certificate.
//
// Transitions are one-way: ACTIVE → REVOKED. There is no un-revoke.
// EXPIRED is set by validity-window housekeeping, never by a caller.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusExpired:
		return true
	}
	return false
}

const maxLabelLength = 120

// Certificate is the stable identity for an uploaded key. DID verification
// methods reference the Certificate, not a version; rotation swaps the
// current version underneath without breaking links.
//
// Invariants:
//   - Label is non-empty, at most 120 characters, unique per organization
//   - Status only ever moves ACTIVE → REVOKED (or ACTIVE → EXPIRED)
//   - CurrentVersionID points at the single version with IsCurrent=true,
//     or is zero when no version exists
type Certificate struct {
	ID               id.CertificateID
	OrgID            id.OrgID
	Label            string
	Status           Status
	CurrentVersionID id.CertificateVersionID
	CreatedBy        id.UserID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewCertificate constructs an ACTIVE certificate, validating invariants.
func NewCertificate(certID id.CertificateID, orgID id.OrgID, label string, createdBy id.UserID, now time.Time) (*Certificate, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate label cannot be empty")
	}
	if len(label) > maxLabelLength {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "certificate label must be %d characters or less", maxLabelLength)
	}
	return &Certificate{
		ID:        certID,
		OrgID:     orgID,
		Label:     label,
		Status:    StatusActive,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Certificate) IsActive() bool {
	return c.Status == StatusActive
}

// CanRotate checks that a new version may be uploaded.
// Only ACTIVE certificates rotate.
func (c *Certificate) CanRotate() error {
	if c.Status != StatusActive {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"cannot rotate a %s certificate, only ACTIVE certificates can be rotated", c.Status)
	}
	return nil
}

// CanRevoke checks the revocation idempotency guard.
func (c *Certificate) CanRevoke() error {
	if c.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate is already revoked")
	}
	return nil
}

// ApplyRevocation flips the certificate to REVOKED. Irreversible.
// Call CanRevoke first.
func (c *Certificate) ApplyRevocation(now time.Time) {
	c.Status = StatusRevoked
	c.UpdatedAt = now
}
