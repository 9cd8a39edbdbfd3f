package models

import "time"

// ExtractionResult is the typed payload returned by the certificate
// metadata extractor for a PEM/DER/P12 upload. Field names follow the
// extractor's JSON output.
type ExtractionResult struct {
	SubjectDN         string     `json:"subject_dn"`
	IssuerDN          string     `json:"issuer_dn"`
	SerialNumber      string     `json:"serial_number"`
	NotValidBefore    *time.Time `json:"not_valid_before,omitempty"`
	NotValidAfter     *time.Time `json:"not_valid_after,omitempty"`
	KeyType           string     `json:"key_type"`
	KeyCurve          string     `json:"key_curve,omitempty"`
	KeySize           int        `json:"key_size,omitempty"`
	FingerprintSHA256 string     `json:"fingerprint_sha256"`
	PublicKeyJWK      JWK        `json:"public_key_jwk"`
}
