package assembler

import (
	"strings"
	"time"
)

const (
	credentialsContextURI = "https://www.w3.org/2018/credentials/v1"

	credentialType            = "VerifiableCredential"
	publicationCredentialType = "DIDPublicationCredential"
)

// VerifiableCredential attests that an organization published a DID
// document through the platform.
type VerifiableCredential struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	Issuer            CredentialIssuer  `json:"issuer"`
	IssuanceDate      string            `json:"issuanceDate"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	Proof             *Proof            `json:"proof,omitempty"`
}

type CredentialIssuer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CredentialSubject struct {
	ID                      string `json:"id"`
	Type                    string `json:"type"`
	Organization            string `json:"organization"`
	Owner                   string `json:"owner"`
	Label                   string `json:"label"`
	Version                 int    `json:"version"`
	VerificationMethodCount int    `json:"verificationMethodCount"`
	PublicationStatus       string `json:"publicationStatus"`
}

// CredentialInput gathers the publication facts a credential wraps.
type CredentialInput struct {
	Domain       string
	PlatformName string
	DIDURI       string
	Document     Document
	OrgName      string
	OwnerName    string
	Label        string
	Version      int
	PublishedAt  time.Time
}

// BuildVerifiableCredential wraps a published document in a credential,
// propagating the document's proof block when present.
func BuildVerifiableCredential(in CredentialInput) VerifiableCredential {
	issuedAt := in.PublishedAt.UTC().Format(time.RFC3339)
	vc := VerifiableCredential{
		Context: []string{credentialsContextURI, didContextURI},
		Type:    []string{credentialType, publicationCredentialType},
		Issuer: CredentialIssuer{
			ID:   "did:web:" + strings.ReplaceAll(in.Domain, ":", "%3A"),
			Name: in.PlatformName,
		},
		IssuanceDate: issuedAt,
		CredentialSubject: CredentialSubject{
			ID:                      in.DIDURI,
			Type:                    "DIDDocument",
			Organization:            in.OrgName,
			Owner:                   in.OwnerName,
			Label:                   in.Label,
			Version:                 in.Version,
			VerificationMethodCount: len(in.Document.VerificationMethod),
			PublicationStatus:       "published",
		},
	}
	if in.Document.Proof != nil {
		proof := *in.Document.Proof
		vc.Proof = &proof
	}
	return vc
}
