package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"annuaire/internal/document/assembler"
	"annuaire/internal/document/models"
	docservice "annuaire/internal/document/service"
	id "annuaire/pkg/domain"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/requestcontext"
)

// DocumentService is the surface the document handler needs.
type DocumentService interface {
	Create(ctx context.Context, org id.OrgRef, actor id.Actor, req docservice.CreateRequest) (*models.Document, error)
	UpdateDraft(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, endpoints []assembler.ServiceEndpointSpec) (*models.Document, error)
	AddVerificationMethod(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, spec docservice.MethodSpec) (*models.VerificationMethod, error)
	RemoveVerificationMethod(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, fragment string) error
	Submit(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID) (*models.Document, error)
	Approve(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, comment string) (*models.Document, error)
	Reject(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, reason string) (*models.Document, error)
	Publish(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID) (*docservice.PublishResult, error)
	Deactivate(ctx context.Context, org id.OrgID, actor id.Actor, docID id.DocumentID, reason string) (*models.Document, error)
	VerifiableCredential(ctx context.Context, org id.OrgRef, actor id.Actor, docID id.DocumentID) (*assembler.VerifiableCredential, error)
	Get(ctx context.Context, org id.OrgID, docID id.DocumentID) (*models.Document, error)
	List(ctx context.Context, org id.OrgID) ([]*models.Document, error)
	ListMine(ctx context.Context, org id.OrgID, actor id.Actor) ([]*models.Document, error)
	ListMethods(ctx context.Context, org id.OrgID, docID id.DocumentID) ([]*models.VerificationMethod, error)
	ListVersions(ctx context.Context, org id.OrgID, docID id.DocumentID) ([]*models.Version, error)
}

// DocumentHandler exposes the document lifecycle over REST.
type DocumentHandler struct {
	logger    *slog.Logger
	documents DocumentService
}

func NewDocumentHandler(documents DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{logger: logger, documents: documents}
}

func (h *DocumentHandler) Register(r chi.Router) {
	r.Route("/orgs/{orgID}/documents", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/mine", h.handleListMine)
		r.Get("/{docID}", h.handleGet)
		r.Put("/{docID}/draft", h.handleUpdateDraft)
		r.Get("/{docID}/methods", h.handleListMethods)
		r.Post("/{docID}/methods", h.handleAddMethod)
		r.Delete("/{docID}/methods/{fragment}", h.handleRemoveMethod)
		r.Post("/{docID}/submit", h.handleSubmit)
		r.Post("/{docID}/approve", h.handleApprove)
		r.Post("/{docID}/reject", h.handleReject)
		r.Post("/{docID}/publish", h.handlePublish)
		r.Post("/{docID}/deactivate", h.handleDeactivate)
		r.Get("/{docID}/versions", h.handleListVersions)
		r.Get("/{docID}/credential", h.handleCredential)
	})
}

type methodSpecRequest struct {
	CertificateID string   `json:"certificate_id"`
	Fragment      string   `json:"fragment"`
	MethodType    string   `json:"method_type,omitempty"`
	Relationships []string `json:"relationships"`
}

func (req methodSpecRequest) toService() (docservice.MethodSpec, error) {
	certID, err := id.ParseCertificateID(req.CertificateID)
	if err != nil {
		return docservice.MethodSpec{}, err
	}
	relationships := make([]models.Relationship, 0, len(req.Relationships))
	for _, tag := range req.Relationships {
		relationships = append(relationships, models.Relationship(tag))
	}
	return docservice.MethodSpec{
		CertificateID: certID,
		Fragment:      req.Fragment,
		MethodType:    req.MethodType,
		Relationships: relationships,
	}, nil
}

type createDocumentRequest struct {
	Label            string                          `json:"label"`
	Methods          []methodSpecRequest             `json:"methods,omitempty"`
	ServiceEndpoints []assembler.ServiceEndpointSpec `json:"service_endpoints,omitempty"`
}

type documentResponse struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	DIDURI        string          `json:"did_uri"`
	Status        string          `json:"status"`
	DraftContent  json.RawMessage `json:"draft_content,omitempty"`
	Content       json.RawMessage `json:"content,omitempty"`
	ReviewComment string          `json:"review_comment,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type methodResponse struct {
	ID            string    `json:"id"`
	CertificateID string    `json:"certificate_id"`
	Fragment      string    `json:"fragment"`
	MethodType    string    `json:"method_type"`
	Relationships []string  `json:"relationships"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type documentVersionResponse struct {
	ID            string          `json:"id"`
	VersionNumber int             `json:"version_number"`
	Content       json.RawMessage `json:"content"`
	Signature     string          `json:"signature"`
	PublishedAt   time.Time       `json:"published_at"`
}

func toDocumentResponse(doc *models.Document) documentResponse {
	return documentResponse{
		ID:            doc.ID.String(),
		Label:         doc.Label,
		DIDURI:        doc.DIDURI,
		Status:        string(doc.Status),
		DraftContent:  doc.DraftContent,
		Content:       doc.Content,
		ReviewComment: doc.ReviewComment,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func toMethodResponse(vm *models.VerificationMethod) methodResponse {
	relationships := make([]string, 0, len(vm.Relationships))
	for _, tag := range vm.Relationships {
		relationships = append(relationships, string(tag))
	}
	return methodResponse{
		ID:            vm.ID.String(),
		CertificateID: vm.CertificateID.String(),
		Fragment:      vm.Fragment,
		MethodType:    vm.MethodType,
		Relationships: relationships,
		IsActive:      vm.IsActive,
		CreatedAt:     vm.CreatedAt,
	}
}

// orgRef resolves the organization context: the ID from the path, slug
// and display name from gateway headers.
func orgRef(r *http.Request) (id.OrgRef, error) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return id.OrgRef{}, err
	}
	slug := r.Header.Get("X-Org-Slug")
	if slug == "" {
		return id.OrgRef{}, dErrors.New(dErrors.CodeValidation, "missing X-Org-Slug header")
	}
	return id.OrgRef{ID: orgID, Slug: slug, Name: r.Header.Get("X-Org-Name")}, nil
}

func docParams(r *http.Request) (id.OrgID, id.DocumentID, error) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return id.OrgID{}, id.DocumentID{}, err
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "docID"))
	if err != nil {
		return id.OrgID{}, id.DocumentID{}, err
	}
	return orgID, docID, nil
}

func (h *DocumentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := orgRef(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	req := docservice.CreateRequest{Label: body.Label, ServiceEndpoints: body.ServiceEndpoints}
	for _, spec := range body.Methods {
		converted, err := spec.toService()
		if err != nil {
			writeError(w, err)
			return
		}
		req.Methods = append(req.Methods, converted)
	}

	doc, err := h.documents.Create(ctx, org, requestcontext.Actor(ctx), req)
	if err != nil {
		h.logger.WarnContext(ctx, "document creation failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		ServiceEndpoints []assembler.ServiceEndpointSpec `json:"service_endpoints,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
			return
		}
	}

	doc, err := h.documents.UpdateDraft(ctx, orgID, requestcontext.Actor(ctx), docID, body.ServiceEndpoints)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleAddMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body methodSpecRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	spec, err := body.toService()
	if err != nil {
		writeError(w, err)
		return
	}

	vm, err := h.documents.AddVerificationMethod(ctx, orgID, requestcontext.Actor(ctx), docID, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMethodResponse(vm))
}

func (h *DocumentHandler) handleRemoveMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fragment := chi.URLParam(r, "fragment")

	if err := h.documents.RemoveVerificationMethod(ctx, orgID, requestcontext.Actor(ctx), docID, fragment); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, orgID id.OrgID, actor id.Actor, docID id.DocumentID, _ string) (*models.Document, error) {
		return h.documents.Submit(ctx, orgID, actor, docID)
	})
}

func (h *DocumentHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.documents.Approve)
}

func (h *DocumentHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.documents.Reject)
}

func (h *DocumentHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.documents.Deactivate)
}

// transition factors the comment-carrying state changes: decode the
// optional comment, run the operation, return the updated document.
func (h *DocumentHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, orgID id.OrgID, actor id.Actor, docID id.DocumentID, comment string) (*models.Document, error),
) {
	ctx := r.Context()
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Comment string `json:"comment,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
			return
		}
	}

	doc, err := op(ctx, orgID, requestcontext.Actor(ctx), docID, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.documents.Publish(ctx, orgID, requestcontext.Actor(ctx), docID)
	if err != nil {
		h.logger.WarnContext(ctx, "publish failed", "document_id", docID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": toDocumentResponse(result.Document),
		"version": documentVersionResponse{
			ID:            result.Version.ID.String(),
			VersionNumber: result.Version.VersionNumber,
			Content:       result.Version.Content,
			Signature:     result.Version.Signature,
			PublishedAt:   result.Version.PublishedAt,
		},
	})
}

func (h *DocumentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.documents.Get(r.Context(), orgID, docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.documents.List(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentList(docs))
}

func (h *DocumentHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.documents.ListMine(ctx, orgID, requestcontext.Actor(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentList(docs))
}

func (h *DocumentHandler) handleListMethods(w http.ResponseWriter, r *http.Request) {
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	methods, err := h.documents.ListMethods(r.Context(), orgID, docID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]methodResponse, 0, len(methods))
	for _, vm := range methods {
		out = append(out, toMethodResponse(vm))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DocumentHandler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	orgID, docID, err := docParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.documents.ListVersions(r.Context(), orgID, docID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]documentVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, documentVersionResponse{
			ID:            v.ID.String(),
			VersionNumber: v.VersionNumber,
			Content:       v.Content,
			Signature:     v.Signature,
			PublishedAt:   v.PublishedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DocumentHandler) handleCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := orgRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "docID"))
	if err != nil {
		writeError(w, err)
		return
	}

	vc, err := h.documents.VerifiableCredential(ctx, org, requestcontext.Actor(ctx), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

func toDocumentList(docs []*models.Document) []documentResponse {
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	return out
}
