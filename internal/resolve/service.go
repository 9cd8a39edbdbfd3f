// Package resolve serves the public read side: a published DID document
// looked up by its URI, with a cache in front of the document store.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"annuaire/internal/audit"
	"annuaire/internal/document/models"
	"annuaire/internal/platform/metrics"
	dErrors "annuaire/pkg/domain-errors"
	"annuaire/pkg/platform/sentinel"
)

// Resolution is the public view of a DID document. Deactivated documents
// still resolve, flagged, with their last published content.
type Resolution struct {
	DIDURI      string          `json:"did_uri"`
	Document    json.RawMessage `json:"document"`
	Deactivated bool            `json:"deactivated,omitempty"`
}

// DocumentFinder is the read port onto the document store.
type DocumentFinder interface {
	FindPublishedByDIDURI(ctx context.Context, didURI string) (*models.Document, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

type Service struct {
	docs  DocumentFinder
	cache Cache

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(docs DocumentFinder, cache Cache, opts ...Option) *Service {
	s := &Service{
		docs:   docs,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the published content for a DID URI. Cache failures are
// logged and fall through to the store; the read path never depends on
// the cache being up.
func (s *Service) Resolve(ctx context.Context, didURI string) (*Resolution, error) {
	if didURI == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "DID URI cannot be empty")
	}

	if cached, hit, err := s.cache.Get(ctx, didURI); err != nil {
		s.logger.WarnContext(ctx, "resolution cache read failed", "error", err, "did_uri", didURI)
	} else if hit {
		if s.metrics != nil {
			s.metrics.ResolutionCacheHits.Inc()
		}
		return cached, nil
	}
	if s.metrics != nil {
		s.metrics.ResolutionCacheMisses.Inc()
	}

	doc, err := s.docs.FindPublishedByDIDURI(ctx, didURI)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no published document for this DID")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve DID")
	}

	resolution := &Resolution{
		DIDURI:      doc.DIDURI,
		Document:    doc.Content,
		Deactivated: doc.Status == models.StatusDeactivated,
	}
	if err := s.cache.Set(ctx, didURI, resolution); err != nil {
		s.logger.WarnContext(ctx, "resolution cache write failed", "error", err, "did_uri", didURI)
	}

	if s.auditPublisher != nil {
		s.auditPublisher.Emit(ctx, audit.Event{
			OrgID:        doc.OrgID,
			Action:       audit.ActionDIDResolved,
			ResourceType: audit.ResourceDocument,
			ResourceID:   doc.ID.String(),
			Metadata:     audit.Metadata{DIDURI: didURI},
		})
	}
	return resolution, nil
}

// Invalidate drops a cached resolution. Called after publish and
// deactivation so the public view converges faster than the TTL.
func (s *Service) Invalidate(ctx context.Context, didURI string) {
	if err := s.cache.Invalidate(ctx, didURI); err != nil {
		s.logger.WarnContext(ctx, "resolution cache invalidation failed", "error", err, "did_uri", didURI)
	}
}
