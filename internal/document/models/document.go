// Package models defines the DID document aggregate: the document with its
// review lifecycle, its append-only publish versions, and the verification
// methods linking it to certificates.
package models

import (
	"encoding/json"
	"regexp"
	"time"

	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
)

// Status is the lifecycle state of a DID document.
//
// SIGNED is transient: it only ever exists inside a publish transaction
// and is never observable after the operation returns.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusSigned        Status = "SIGNED"
	StatusPublished     Status = "PUBLISHED"
	StatusDeactivated   Status = "DEACTIVATED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusApproved, StatusRejected,
		StatusSigned, StatusPublished, StatusDeactivated:
		return true
	}
	return false
}

// IsEditable reports whether drafts and verification methods may be
// mutated. PUBLISHED edits stage into the draft for the next publish
// cycle, never into live content.
func (s Status) IsEditable() bool {
	return s == StatusDraft || s == StatusRejected || s == StatusPublished
}

var labelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,118}[a-z0-9]$`)

// ValidateLabel enforces the document label format: lowercase
// alphanumerics and hyphens, 2 to 120 characters, no edge hyphens.
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"label must be 2-120 lowercase alphanumeric characters or hyphens, starting and ending alphanumeric")
	}
	return nil
}

// Document is a DID document under organizational review. The owner is
// the sole editor; reviewers and admins act through the guarded
// transitions below.
//
// DraftContent and Content are independent: publish promotes a signed
// rendition of the draft into Content and clears the draft.
type Document struct {
	ID      id.DocumentID
	OrgID   id.OrgID
	OwnerID id.UserID
	Label   string

	// OwnerEmail and OwnerName are denormalized at creation so published
	// artifacts attribute the document to its owner, whoever fetches them.
	OwnerEmail string
	OwnerName  string

	// DIDURI is the deterministic did:web identifier, fixed at creation.
	DIDURI string

	Status       Status
	DraftContent json.RawMessage
	Content      json.RawMessage

	SubmittedBy   *id.UserID
	SubmittedAt   *time.Time
	ReviewedBy    *id.UserID
	ReviewedAt    *time.Time
	ReviewComment string

	CurrentVersionID id.DocumentVersionID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDocument constructs a DRAFT document. Label uniqueness per
// (org, owner) is the store's concern.
func NewDocument(docID id.DocumentID, orgID id.OrgID, owner id.UserID, label, didURI string, now time.Time) (*Document, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}
	if didURI == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document requires a DID URI")
	}
	return &Document{
		ID:        docID,
		OrgID:     orgID,
		OwnerID:   owner,
		Label:     label,
		DIDURI:    didURI,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (d *Document) IsOwner(actor id.Actor) bool {
	return d.OwnerID == actor.ID
}

// CanEditDraft guards draft and verification-method mutation. Only the
// owner edits, and only in an editable state. Admins never edit documents
// they do not own.
func (d *Document) CanEditDraft(actor id.Actor) error {
	if !d.IsOwner(actor) {
		return dErrors.New(dErrors.CodeForbidden, "only the document owner can edit it")
	}
	if !d.Status.IsEditable() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"document in status %s cannot be edited", d.Status)
	}
	return nil
}

// CanSubmit guards DRAFT/REJECTED → PENDING_REVIEW. The active-method
// requirement is checked by the service, which can see the methods.
func (d *Document) CanSubmit(actor id.Actor) error {
	if !d.IsOwner(actor) {
		return dErrors.New(dErrors.CodeForbidden, "only the document owner can submit it for review")
	}
	if d.Status != StatusDraft && d.Status != StatusRejected {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"document in status %s cannot be submitted for review", d.Status)
	}
	return nil
}

// CanReview guards approve and reject. The owner never reviews their own
// document, whatever their authority.
func (d *Document) CanReview(actor id.Actor) error {
	if d.Status != StatusPendingReview {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"document in status %s is not awaiting review", d.Status)
	}
	if !actor.CanReview {
		return dErrors.New(dErrors.CodeForbidden, "caller lacks review authority")
	}
	if d.IsOwner(actor) {
		return dErrors.New(dErrors.CodeForbidden, "owners cannot review their own document")
	}
	return nil
}

// CanPublish guards the publish entry points: the reviewed APPROVED path
// for everyone, the direct DRAFT path for admins only, and the
// re-publish path for the owner or an admin once a document is live.
// Content guards (active methods, revoked references, non-empty draft)
// live in the service.
func (d *Document) CanPublish(actor id.Actor) error {
	switch d.Status {
	case StatusApproved:
		return nil
	case StatusDraft:
		if actor.Admin {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "publishing from DRAFT requires admin authority")
	case StatusPublished:
		if d.IsOwner(actor) || actor.Admin {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "only the owner or an admin can re-publish a document")
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"document in status %s cannot be published", d.Status)
	}
}

// CanRepublish checks the re-publish staleness guard: a pending draft
// must exist and differ from the live content.
func (d *Document) CanRepublish() error {
	if d.Status != StatusPublished {
		return nil
	}
	if len(d.DraftContent) == 0 {
		return dErrors.New(dErrors.CodeValidation, "no pending changes to publish, edit the document first")
	}
	if bytesEqual(d.DraftContent, d.Content) {
		return dErrors.New(dErrors.CodeValidation,
			"draft content is identical to the published version, make changes before re-publishing")
	}
	return nil
}

func bytesEqual(a, b json.RawMessage) bool {
	return string(a) == string(b)
}

// CanDeactivate guards PUBLISHED → DEACTIVATED.
func (d *Document) CanDeactivate(actor id.Actor) error {
	if d.Status != StatusPublished {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"document in status %s cannot be deactivated", d.Status)
	}
	if !d.IsOwner(actor) && !actor.Admin {
		return dErrors.New(dErrors.CodeForbidden, "only the owner or an admin can deactivate a document")
	}
	return nil
}

// ApplyDraftUpdate stages new draft content. A REJECTED document returns
// to DRAFT and its review verdict is wiped.
func (d *Document) ApplyDraftUpdate(content json.RawMessage, now time.Time) {
	d.DraftContent = content
	if d.Status == StatusRejected {
		d.Status = StatusDraft
		d.ResetReview()
	}
	d.UpdatedAt = now
}

// ResetReview clears submission and review bookkeeping.
func (d *Document) ResetReview() {
	d.SubmittedBy = nil
	d.SubmittedAt = nil
	d.ReviewedBy = nil
	d.ReviewedAt = nil
	d.ReviewComment = ""
}

func (d *Document) ApplySubmit(actor id.Actor, now time.Time) {
	d.Status = StatusPendingReview
	d.SubmittedBy = &actor.ID
	d.SubmittedAt = &now
	d.ReviewedBy = nil
	d.ReviewedAt = nil
	d.ReviewComment = ""
	d.UpdatedAt = now
}

func (d *Document) ApplyApprove(actor id.Actor, comment string, now time.Time) {
	d.Status = StatusApproved
	d.ReviewedBy = &actor.ID
	d.ReviewedAt = &now
	d.ReviewComment = comment
	d.UpdatedAt = now
}

func (d *Document) ApplyReject(actor id.Actor, comment string, now time.Time) {
	d.Status = StatusRejected
	d.ReviewedBy = &actor.ID
	d.ReviewedAt = &now
	d.ReviewComment = comment
	d.UpdatedAt = now
}

// ApplyPublication promotes the signed snapshot into live content and
// clears the draft. Runs only inside the store's publish transaction.
func (d *Document) ApplyPublication(signed json.RawMessage, versionID id.DocumentVersionID, now time.Time) {
	d.Status = StatusPublished
	d.Content = signed
	d.DraftContent = nil
	d.CurrentVersionID = versionID
	d.UpdatedAt = now
}

func (d *Document) ApplyDeactivation(now time.Time) {
	d.Status = StatusDeactivated
	d.UpdatedAt = now
}
