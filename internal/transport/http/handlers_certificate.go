package httptransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	certmodels "annuaire/internal/certificate/models"
	certservice "annuaire/internal/certificate/service"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/requestcontext"
)

// CertificateService is the surface the certificate handler needs.
type CertificateService interface {
	Upload(ctx context.Context, org id.OrgID, actor id.Actor, req certservice.UploadRequest) (*certmodels.Certificate, *certmodels.Version, error)
	Rotate(ctx context.Context, org id.OrgID, actor id.Actor, certID id.CertificateID, req certservice.UploadRequest) (*certmodels.Version, error)
	Revoke(ctx context.Context, org id.OrgID, actor id.Actor, certID id.CertificateID, reason string) (*certservice.RevocationResult, error)
	Get(ctx context.Context, org id.OrgID, certID id.CertificateID) (*certmodels.Certificate, error)
	List(ctx context.Context, org id.OrgID) ([]*certmodels.Certificate, error)
	ListMine(ctx context.Context, org id.OrgID, actor id.Actor) ([]*certmodels.Certificate, error)
	ListVersions(ctx context.Context, org id.OrgID, certID id.CertificateID) ([]*certmodels.Version, error)
}

// CertificateHandler exposes the certificate registry over REST.
type CertificateHandler struct {
	logger       *slog.Logger
	certificates CertificateService
}

func NewCertificateHandler(certificates CertificateService, logger *slog.Logger) *CertificateHandler {
	return &CertificateHandler{logger: logger, certificates: certificates}
}

func (h *CertificateHandler) Register(r chi.Router) {
	r.Route("/orgs/{orgID}/certificates", func(r chi.Router) {
		r.Post("/", h.handleUpload)
		r.Get("/", h.handleList)
		r.Get("/mine", h.handleListMine)
		r.Get("/{certID}", h.handleGet)
		r.Get("/{certID}/versions", h.handleListVersions)
		r.Post("/{certID}/rotate", h.handleRotate)
		r.Post("/{certID}/revoke", h.handleRevoke)
	})
}

type uploadCertificateRequest struct {
	Label       string `json:"label"`
	Filename    string `json:"filename"`
	Content     string `json:"content"` // base64
	P12Password string `json:"p12_password,omitempty"`
}

func (req uploadCertificateRequest) toService() (certservice.UploadRequest, error) {
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return certservice.UploadRequest{}, dErrors.New(dErrors.CodeValidation, "content must be base64 encoded")
	}
	return certservice.UploadRequest{
		Label:       req.Label,
		Filename:    req.Filename,
		Content:     content,
		P12Password: req.P12Password,
	}, nil
}

type certificateResponse struct {
	ID               string    `json:"id"`
	Label            string    `json:"label"`
	Status           string    `json:"status"`
	CurrentVersionID string    `json:"current_version_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type certificateVersionResponse struct {
	ID                string         `json:"id"`
	VersionNumber     int            `json:"version_number"`
	PublicKeyJWK      certmodels.JWK `json:"public_key_jwk"`
	SubjectDN         string         `json:"subject_dn"`
	IssuerDN          string         `json:"issuer_dn"`
	SerialNumber      string         `json:"serial_number"`
	NotValidBefore    *time.Time     `json:"not_valid_before,omitempty"`
	NotValidAfter     *time.Time     `json:"not_valid_after,omitempty"`
	KeyType           string         `json:"key_type"`
	KeyCurve          string         `json:"key_curve,omitempty"`
	KeySize           int            `json:"key_size,omitempty"`
	FingerprintSHA256 string         `json:"fingerprint_sha256"`
	IsCurrent         bool           `json:"is_current"`
	CreatedAt         time.Time      `json:"created_at"`
}

func toCertificateResponse(cert *certmodels.Certificate) certificateResponse {
	resp := certificateResponse{
		ID:        cert.ID.String(),
		Label:     cert.Label,
		Status:    string(cert.Status),
		CreatedAt: cert.CreatedAt,
		UpdatedAt: cert.UpdatedAt,
	}
	if !cert.CurrentVersionID.IsZero() {
		resp.CurrentVersionID = cert.CurrentVersionID.String()
	}
	return resp
}

func toVersionResponse(v *certmodels.Version) certificateVersionResponse {
	return certificateVersionResponse{
		ID:                v.ID.String(),
		VersionNumber:     v.VersionNumber,
		PublicKeyJWK:      v.PublicKeyJWK,
		SubjectDN:         v.SubjectDN,
		IssuerDN:          v.IssuerDN,
		SerialNumber:      v.SerialNumber,
		NotValidBefore:    v.NotValidBefore,
		NotValidAfter:     v.NotValidAfter,
		KeyType:           v.KeyType,
		KeyCurve:          v.KeyCurve,
		KeySize:           v.KeySize,
		FingerprintSHA256: v.FingerprintSHA256,
		IsCurrent:         v.IsCurrent,
		CreatedAt:         v.CreatedAt,
	}
}

func (h *CertificateHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body uploadCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}

	cert, version, err := h.certificates.Upload(ctx, orgID, requestcontext.Actor(ctx), req)
	if err != nil {
		h.logger.WarnContext(ctx, "certificate upload failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"certificate": toCertificateResponse(cert),
		"version":     toVersionResponse(version),
	})
}

func (h *CertificateHandler) handleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, certID, err := certParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body uploadCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	req, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}

	version, err := h.certificates.Rotate(ctx, orgID, requestcontext.Actor(ctx), certID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionResponse(version))
}

func (h *CertificateHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, certID, err := certParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// The reason is optional and only lands in the audit trail.
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
			return
		}
	}

	result, err := h.certificates.Revoke(ctx, orgID, requestcontext.Actor(ctx), certID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"certificate":         toCertificateResponse(result.Certificate),
		"deactivated_methods": result.DeactivatedMethods,
	})
}

func (h *CertificateHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, certID, err := certParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cert, err := h.certificates.Get(r.Context(), orgID, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateResponse(cert))
}

func (h *CertificateHandler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, err)
		return
	}
	certs, err := h.certificates.List(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateList(certs))
}

func (h *CertificateHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, err)
		return
	}
	certs, err := h.certificates.ListMine(ctx, orgID, requestcontext.Actor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCertificateList(certs))
}

func (h *CertificateHandler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	orgID, certID, err := certParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.certificates.ListVersions(r.Context(), orgID, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]certificateVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, toVersionResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func toCertificateList(certs []*certmodels.Certificate) []certificateResponse {
	out := make([]certificateResponse, 0, len(certs))
	for _, cert := range certs {
		out = append(out, toCertificateResponse(cert))
	}
	return out
}

func certParams(r *http.Request) (id.OrgID, id.CertificateID, error) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return id.OrgID{}, id.CertificateID{}, err
	}
	certID, err := id.ParseCertificateID(chi.URLParam(r, "certID"))
	if err != nil {
		return id.OrgID{}, id.CertificateID{}, err
	}
	return orgID, certID, nil
}
