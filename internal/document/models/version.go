package models

import (
	"encoding/json"
	"time"

	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
)

// Version is an append-only publish record: the signed content snapshot,
// the detached signature, and the registrar's response. Never mutated.
type Version struct {
	ID                id.DocumentVersionID
	DocumentID        id.DocumentID
	VersionNumber     int
	Content           json.RawMessage
	Signature         string
	RegistrarResponse json.RawMessage
	PublishedBy       id.UserID
	PublishedAt       time.Time
}

// NewVersion constructs a publish snapshot.
func NewVersion(
	versionID id.DocumentVersionID,
	docID id.DocumentID,
	number int,
	content json.RawMessage,
	signature string,
	registrarResponse json.RawMessage,
	publishedBy id.UserID,
	now time.Time,
) (*Version, error) {
	if number < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version number must be positive")
	}
	if len(content) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version content cannot be empty")
	}
	return &Version{
		ID:                versionID,
		DocumentID:        docID,
		VersionNumber:     number,
		Content:           content,
		Signature:         signature,
		RegistrarResponse: registrarResponse,
		PublishedBy:       publishedBy,
		PublishedAt:       now,
	}, nil
}
