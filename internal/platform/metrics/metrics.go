package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	CertificatesUploaded prometheus.Counter
	CertificatesRotated  prometheus.Counter
	CertificatesRevoked  prometheus.Counter
	MethodsDeactivated   prometheus.Counter

	DocumentsCreated     prometheus.Counter
	DocumentsPublished   prometheus.Counter
	DocumentsDeactivated prometheus.Counter
	PublishFailures      prometheus.Counter

	ResolutionCacheHits   prometheus.Counter
	ResolutionCacheMisses prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_certificates_uploaded_total",
			Help: "Total number of certificates uploaded",
		}),
		CertificatesRotated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_certificates_rotated_total",
			Help: "Total number of certificate rotations",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		MethodsDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_verification_methods_deactivated_total",
			Help: "Verification methods deactivated by revocation cascades",
		}),
		DocumentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_documents_created_total",
			Help: "Total number of DID documents created",
		}),
		DocumentsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_documents_published_total",
			Help: "Total number of successful document publications",
		}),
		DocumentsDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_documents_deactivated_total",
			Help: "Total number of DID documents deactivated",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_document_publish_failures_total",
			Help: "Publish attempts rolled back after signer or registrar errors",
		}),
		ResolutionCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_resolution_cache_hits_total",
			Help: "Resolution requests served from the cache",
		}),
		ResolutionCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annuaire_resolution_cache_misses_total",
			Help: "Resolution requests that fell through to the store",
		}),
	}
}
