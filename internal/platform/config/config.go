package config

import (
	"os"
	"strings"
	"time"
)

// Server captures the process-level configuration. Integration URLs left
// empty put the matching client into stub mode for local development.
type Server struct {
	Addr string

	// Domain is the did:web host documents publish under.
	Domain string
	// PlatformName appears as the issuer name in verifiable credentials.
	PlatformName string

	DatabaseURL   string
	MigrationsDir string

	RedisURL        string
	ResolveCacheTTL time.Duration

	KafkaBrokers    []string
	AuditKafkaTopic string

	SignServerURL        string
	SignServerWorkerName string
	RegistrarURL         string
	ExtractorJarPath     string
	ExtractorJavaBin     string

	FileStoreDir string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                 getenv("ANNUAIRE_ADDR", ":8080"),
		Domain:               getenv("ANNUAIRE_DOMAIN", "localhost%3A8443"),
		PlatformName:         getenv("ANNUAIRE_PLATFORM_NAME", "Annuaire Platform"),
		DatabaseURL:          os.Getenv("ANNUAIRE_DATABASE_URL"),
		MigrationsDir:        getenv("ANNUAIRE_MIGRATIONS_DIR", "db/migrations"),
		RedisURL:             os.Getenv("ANNUAIRE_REDIS_URL"),
		ResolveCacheTTL:      5 * time.Minute,
		AuditKafkaTopic:      getenv("ANNUAIRE_AUDIT_TOPIC", "annuaire.audit"),
		SignServerURL:        os.Getenv("ANNUAIRE_SIGNSERVER_URL"),
		SignServerWorkerName: getenv("ANNUAIRE_SIGNSERVER_WORKER", "DIDDocumentSigner"),
		RegistrarURL:         os.Getenv("ANNUAIRE_REGISTRAR_URL"),
		ExtractorJarPath:     os.Getenv("ANNUAIRE_EXTRACTOR_JAR"),
		ExtractorJavaBin:     getenv("ANNUAIRE_JAVA_BIN", "java"),
		FileStoreDir:         getenv("ANNUAIRE_FILESTORE_DIR", "var/certificates"),
	}

	if brokers := os.Getenv("ANNUAIRE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if ttl := os.Getenv("ANNUAIRE_RESOLVE_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.ResolveCacheTTL = d
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
