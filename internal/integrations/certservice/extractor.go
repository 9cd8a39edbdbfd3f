// Package certservice extracts X.509 metadata and public key JWKs from
// uploaded certificate files by shelling out to the extractor JAR, which
// handles PEM, DER, and PKCS#12 inputs.
package certservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"annuaire/internal/certificate/models"
	dErrors "annuaire/pkg/domain-errors"
)

const (
	defaultJavaBin = "java"
	defaultTimeout = 30 * time.Second
)

// Extractor invokes the extractor JAR as a subprocess. The JAR reads a
// certificate file and prints metadata JSON on stdout.
type Extractor struct {
	javaBin string
	jarPath string
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(e *Extractor)

func WithJavaBin(path string) Option {
	return func(e *Extractor) {
		e.javaBin = path
	}
}

func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New constructs an Extractor for the given JAR path.
func New(jarPath string, opts ...Option) *Extractor {
	e := &Extractor{
		javaBin: defaultJavaBin,
		jarPath: jarPath,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs the JAR in metadata mode and parses its output. The
// password is only passed for PKCS#12 files.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte, password string) (models.ExtractionResult, error) {
	var zero models.ExtractionResult

	tmp, err := os.CreateTemp("", "cert-*"+sanitizeSuffix(filename))
	if err != nil {
		return zero, fmt.Errorf("create temp certificate file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return zero, fmt.Errorf("write temp certificate file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return zero, fmt.Errorf("close temp certificate file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{"-jar", e.jarPath, "--metadata"}
	if password != "" {
		args = append(args, "--p12-password", password)
	}
	args = append(args, tmp.Name())

	cmd := exec.CommandContext(ctx, e.javaBin, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, dErrors.New(dErrors.CodeExternalService, "certificate extraction timed out")
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = err.Error()
		}
		e.logger.ErrorContext(ctx, "certificate extraction failed", "error", message)
		return zero, dErrors.Newf(dErrors.CodeValidation, "certificate extraction failed: %s", message)
	}

	var result models.ExtractionResult
	if err := json.Unmarshal([]byte(stdout.String()), &result); err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to parse extractor output")
	}
	return result, nil
}

// sanitizeSuffix keeps the file extension so the JAR can sniff the
// format, dropping anything that could break the temp pattern.
func sanitizeSuffix(filename string) string {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return ".pem"
	}
	ext := filename[dot:]
	for _, r := range ext[1:] {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return ".pem"
		}
	}
	return ext
}
