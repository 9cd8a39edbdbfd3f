// Package audit records who did what to which artifact. Events are
// emitted from domain services on every state-changing operation and are
// best-effort: a failing sink never breaks the operation that emitted it.
package audit

import (
	"time"

	id "annuaire/pkg/domain"
)

// Action identifies the operation an event records.
type Action string

const (
	ActionCertificateUploaded Action = "CERTIFICATE_UPLOADED"
	ActionCertificateRotated  Action = "CERTIFICATE_ROTATED"
	ActionCertificateRevoked  Action = "CERTIFICATE_REVOKED"

	ActionDocumentCreated      Action = "DOCUMENT_CREATED"
	ActionDraftUpdated         Action = "DRAFT_UPDATED"
	ActionMethodAdded          Action = "VERIFICATION_METHOD_ADDED"
	ActionMethodRemoved        Action = "VERIFICATION_METHOD_REMOVED"
	ActionDocumentSubmitted    Action = "DOCUMENT_SUBMITTED"
	ActionDocumentApproved     Action = "DOCUMENT_APPROVED"
	ActionDocumentRejected     Action = "DOCUMENT_REJECTED"
	ActionDocumentSigned       Action = "DOCUMENT_SIGNED"
	ActionDocumentPublished    Action = "DOCUMENT_PUBLISHED"
	ActionDocumentDeactivated  Action = "DOCUMENT_DEACTIVATED"
	ActionMethodsCascadeClosed Action = "VERIFICATION_METHODS_DEACTIVATED"

	ActionDIDResolved Action = "DID_RESOLVED"
)

// ResourceType names the artifact kind an event is about.
type ResourceType string

const (
	ResourceCertificate ResourceType = "certificate"
	ResourceDocument    ResourceType = "did_document"
)

// Metadata carries the event-specific details. Only the fields relevant
// to the action are set.
type Metadata struct {
	Label         string `json:"label,omitempty"`
	DIDURI        string `json:"did_uri,omitempty"`
	VersionNumber int    `json:"version_number,omitempty"`
	Fragment      string `json:"fragment,omitempty"`
	FromStatus    string `json:"from_status,omitempty"`
	ToStatus      string `json:"to_status,omitempty"`
	Comment       string `json:"comment,omitempty"`
	AffectedCount int    `json:"affected_count,omitempty"`
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp    time.Time    `json:"timestamp"`
	OrgID        id.OrgID     `json:"org_id"`
	ActorID      id.UserID    `json:"actor_id"`
	ActorEmail   string       `json:"actor_email,omitempty"`
	Action       Action       `json:"action"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	Metadata     Metadata     `json:"metadata"`
}
