// Package assembler builds W3C DID Core v1.0 documents and verifiable
// credentials from verification method records. It is pure: inputs arrive
// fully resolved and nothing here touches storage or the network.
package assembler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	certmodels "annuaire/internal/certificate/models"
	"annuaire/internal/document/models"
)

const (
	didContextURI = "https://www.w3.org/ns/did/v1"
	jwsContextURI = "https://w3id.org/security/suites/jws-2020/v1"

	proofType    = "JsonWebSignature2020"
	proofPurpose = "assertionMethod"

	defaultServiceType = "LinkedDomains"
)

// Document is a W3C DID Core document. Field order matches the
// conventional serialization of did:web documents.
type Document struct {
	Context              []string                  `json:"@context"`
	ID                   string                    `json:"id"`
	VerificationMethod   []VerificationMethodEntry `json:"verificationMethod"`
	Authentication       []string                  `json:"authentication,omitempty"`
	AssertionMethod      []string                  `json:"assertionMethod,omitempty"`
	KeyAgreement         []string                  `json:"keyAgreement,omitempty"`
	CapabilityInvocation []string                  `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []string                  `json:"capabilityDelegation,omitempty"`
	Service              []ServiceEndpoint         `json:"service,omitempty"`
	Proof                *Proof                    `json:"proof,omitempty"`
}

type VerificationMethodEntry struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Controller   string         `json:"controller"`
	PublicKeyJWK certmodels.JWK `json:"publicKeyJwk"`
}

type ServiceEndpoint struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// ServiceEndpointSpec is the caller-supplied shape a service entry is
// built from. ID and Type receive defaults when empty.
type ServiceEndpointSpec struct {
	ID       string
	Type     string
	Endpoint string
}

type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	ProofPurpose       string `json:"proofPurpose"`
	JWS                string `json:"jws"`
	VerificationMethod string `json:"verificationMethod,omitempty"`
}

// ResolvedMethod pairs a verification method with its certificate's
// current public key. JWK is nil when the certificate has no current
// version; such methods are silently excluded from assembly.
type ResolvedMethod struct {
	Method *models.VerificationMethod
	JWK    *certmodels.JWK
}

// BuildDIDURI produces the deterministic did:web identifier. Colons in
// the domain (ports) are %3A-encoded per the did:web method spec.
func BuildDIDURI(domain, orgSlug, ownerIdentifier, label string) string {
	encoded := strings.ReplaceAll(domain, ":", "%3A")
	return fmt.Sprintf("did:web:%s:%s:%s:%s", encoded, orgSlug, ownerIdentifier, label)
}

var nonIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// OwnerIdentifier derives the owner segment of a DID URI from an email
// address: the local part with every other character collapsed to a
// hyphen, edge hyphens trimmed, lowercased.
func OwnerIdentifier(email string) string {
	local, _, _ := strings.Cut(email, "@")
	cleaned := nonIdentifierChars.ReplaceAllString(local, "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "unknown"
	}
	return strings.ToLower(cleaned)
}

// Assemble builds a DID document from the active verification methods.
// Inactive methods and methods without a resolvable key are skipped, not
// errors. Relationship arrays list full method ids in method order.
func Assemble(didURI string, methods []ResolvedMethod, endpoints []ServiceEndpointSpec) Document {
	doc := Document{
		Context:            []string{didContextURI, jwsContextURI},
		ID:                 didURI,
		VerificationMethod: []VerificationMethodEntry{},
	}

	relationships := make(map[models.Relationship][]string)
	for _, resolved := range methods {
		vm := resolved.Method
		if vm == nil || !vm.IsActive || resolved.JWK == nil {
			continue
		}
		fullID := didURI + "#" + vm.Fragment
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethodEntry{
			ID:           fullID,
			Type:         vm.MethodType,
			Controller:   didURI,
			PublicKeyJWK: enrichJWK(*resolved.JWK, vm),
		})
		for _, rel := range vm.Relationships {
			relationships[rel] = append(relationships[rel], fullID)
		}
	}

	doc.Authentication = relationships[models.RelAuthentication]
	doc.AssertionMethod = relationships[models.RelAssertionMethod]
	doc.KeyAgreement = relationships[models.RelKeyAgreement]
	doc.CapabilityInvocation = relationships[models.RelCapabilityInvocation]
	doc.CapabilityDelegation = relationships[models.RelCapabilityDelegation]

	for i, spec := range endpoints {
		fragment := spec.ID
		if fragment == "" {
			fragment = fmt.Sprintf("service-%d", i+1)
		}
		serviceType := spec.Type
		if serviceType == "" {
			serviceType = defaultServiceType
		}
		doc.Service = append(doc.Service, ServiceEndpoint{
			ID:              didURI + "#" + fragment,
			Type:            serviceType,
			ServiceEndpoint: spec.Endpoint,
		})
	}
	return doc
}

// algByKey maps (kty, crv) to a JWS algorithm per RFC 7518.
var algByKey = map[[2]string]string{
	{"EC", "P-256"}:     "ES256",
	{"EC", "P-384"}:     "ES384",
	{"EC", "P-521"}:     "ES512",
	{"EC", "secp256k1"}: "ES256K",
	{"OKP", "Ed25519"}:  "EdDSA",
	{"OKP", "X25519"}:   "ECDH-ES",
}

// enrichJWK fills in alg and use when the stored key lacks them. A
// relationship set of exactly {keyAgreement} marks an encryption key.
func enrichJWK(jwk certmodels.JWK, vm *models.VerificationMethod) certmodels.JWK {
	if jwk.Alg == "" {
		if alg, ok := algByKey[[2]string{jwk.Kty, jwk.Crv}]; ok {
			jwk.Alg = alg
		} else if jwk.Kty == "RSA" {
			jwk.Alg = "RS256"
		}
	}
	if jwk.Use == "" {
		if vm.IsEncryptionOnly() {
			jwk.Use = "enc"
		} else {
			jwk.Use = "sig"
		}
	}
	return jwk
}

// AddProof returns a copy of the document carrying a proof block that
// references the first verification method. The input is not mutated.
func AddProof(doc Document, jws string, now time.Time) Document {
	proof := &Proof{
		Type:         proofType,
		Created:      now.UTC().Format(time.RFC3339),
		ProofPurpose: proofPurpose,
		JWS:          jws,
	}
	if len(doc.VerificationMethod) > 0 {
		proof.VerificationMethod = doc.VerificationMethod[0].ID
	}
	doc.Proof = proof
	return doc
}
