package domain

// Actor carries the calling identity's facts as resolved by the
// authorization gate before a core operation runs. Services trust these as
// preconditions; they never compute membership or roles themselves.
type Actor struct {
	ID    UserID
	Email string
	Name  string

	// CanReview is true for reviewer-eligible members (org admins).
	CanReview bool
	// Admin is true for admin-equivalent callers, who may publish a DRAFT
	// directly and deactivate documents they do not own.
	Admin bool
}

// OrgRef is the organization context for an operation. Slug appears in DID
// URIs; Name in verifiable credentials.
type OrgRef struct {
	ID   OrgID
	Slug string
	Name string
}
