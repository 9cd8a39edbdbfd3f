package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"annuaire/internal/certificate/models"
	id "annuaire/pkg/domain"
	"annuaire/pkg/platform/sentinel"
)

// PostgresStore persists certificates in PostgreSQL. Mutating operations
// run inside a transaction that locks the certificate row with FOR UPDATE
// before invoking callbacks, serializing version allocation per certificate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certColumns = `id, org_id, label, status, current_version_id, created_by, created_at, updated_at`

const versionColumns = `id, certificate_id, version_number, file_id, public_key_jwk,
	subject_dn, issuer_dn, serial_number, not_valid_before, not_valid_after,
	key_type, key_curve, key_size, fingerprint_sha256, is_current, uploaded_by, created_at`

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate, first *models.Version) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create certificate: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO certificates (id, org_id, label, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(cert.ID), uuid.UUID(cert.OrgID), cert.Label, string(cert.Status),
		uuid.UUID(cert.CreatedBy), cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}

	if err := insertVersion(ctx, tx, first); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE certificates SET current_version_id = $1 WHERE id = $2`,
		uuid.UUID(first.ID), uuid.UUID(cert.ID),
	)
	if err != nil {
		return fmt.Errorf("point current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create certificate: %w", err)
	}
	cert.CurrentVersionID = first.ID
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE id = $1`, uuid.UUID(certID))
	return scanCertificate(row)
}

func (s *PostgresStore) FindByLabel(ctx context.Context, orgID id.OrgID, label string) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE org_id = $1 AND lower(label) = lower($2)`,
		uuid.UUID(orgID), label)
	return scanCertificate(row)
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE org_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

func (s *PostgresStore) ListByUploader(ctx context.Context, orgID id.OrgID, userID id.UserID) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+certColumns+` FROM certificates
		 WHERE org_id = $1 AND created_by = $2 ORDER BY created_at DESC`,
		uuid.UUID(orgID), uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list certificates by uploader: %w", err)
	}
	defer rows.Close()
	return scanCertificates(rows)
}

func (s *PostgresStore) ListVersions(ctx context.Context, certID id.CertificateID) ([]*models.Version, error) {
	if _, err := s.FindByID(ctx, certID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM certificate_versions
		 WHERE certificate_id = $1 ORDER BY version_number DESC`,
		uuid.UUID(certID))
	if err != nil {
		return nil, fmt.Errorf("list certificate versions: %w", err)
	}
	defer rows.Close()

	var out []*models.Version
	for rows.Next() {
		v, err := scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CurrentVersion(ctx context.Context, certID id.CertificateID) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM certificate_versions
		 WHERE certificate_id = $1 AND is_current`,
		uuid.UUID(certID))
	v, err := scanVersionRow(row)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *PostgresStore) AppendVersion(
	ctx context.Context,
	certID id.CertificateID,
	build func(cert *models.Certificate, current *models.Version) (*models.Version, error),
) (*models.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append version: %w", err)
	}
	defer tx.Rollback()

	cert, err := lockCertificate(ctx, tx, certID)
	if err != nil {
		return nil, err
	}

	current, err := currentVersionTx(ctx, tx, certID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	built, err := build(cert, current)
	if err != nil {
		return nil, err
	}

	if current != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE certificate_versions SET is_current = false WHERE id = $1`,
			uuid.UUID(current.ID))
		if err != nil {
			return nil, fmt.Errorf("archive current version: %w", err)
		}
	}
	if err := insertVersion(ctx, tx, built); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE certificates SET current_version_id = $1, updated_at = $2 WHERE id = $3`,
		uuid.UUID(built.ID), built.CreatedAt, uuid.UUID(certID))
	if err != nil {
		return nil, fmt.Errorf("repoint current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append version: %w", err)
	}
	return built, nil
}

func (s *PostgresStore) Execute(
	ctx context.Context,
	certID id.CertificateID,
	validate func(*models.Certificate) error,
	mutate func(*models.Certificate),
) (*models.Certificate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin certificate execute: %w", err)
	}
	defer tx.Rollback()

	cert, err := lockCertificate(ctx, tx, certID)
	if err != nil {
		return nil, err
	}
	if err := validate(cert); err != nil {
		return nil, err
	}
	mutate(cert)

	_, err = tx.ExecContext(ctx,
		`UPDATE certificates SET status = $1, current_version_id = $2, updated_at = $3 WHERE id = $4`,
		string(cert.Status), nullableUUID(uuid.UUID(cert.CurrentVersionID)), cert.UpdatedAt, uuid.UUID(cert.ID))
	if err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit certificate execute: %w", err)
	}
	return cert, nil
}

// ── Internal helpers ─────────────────────────────────────────────────────

func lockCertificate(ctx context.Context, tx *sql.Tx, certID id.CertificateID) (*models.Certificate, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE id = $1 FOR UPDATE`, uuid.UUID(certID))
	return scanCertificate(row)
}

func currentVersionTx(ctx context.Context, tx *sql.Tx, certID id.CertificateID) (*models.Version, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM certificate_versions
		 WHERE certificate_id = $1 AND is_current FOR UPDATE`,
		uuid.UUID(certID))
	return scanVersionRow(row)
}

func insertVersion(ctx context.Context, tx *sql.Tx, v *models.Version) error {
	jwk, err := json.Marshal(v.PublicKeyJWK)
	if err != nil {
		return fmt.Errorf("marshal public key jwk: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO certificate_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		uuid.UUID(v.ID), uuid.UUID(v.CertificateID), v.VersionNumber, uuid.UUID(v.FileID), jwk,
		v.SubjectDN, v.IssuerDN, v.SerialNumber, v.NotValidBefore, v.NotValidAfter,
		v.KeyType, v.KeyCurve, nullableInt(v.KeySize), v.FingerprintSHA256, v.IsCurrent,
		uuid.UUID(v.UploadedBy), v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate version: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert      models.Certificate
		certUUID  uuid.UUID
		orgUUID   uuid.UUID
		status    string
		current   sql.Null[uuid.UUID]
		createdBy uuid.UUID
	)
	err := row.Scan(&certUUID, &orgUUID, &cert.Label, &status, &current, &createdBy,
		&cert.CreatedAt, &cert.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	cert.ID = id.CertificateID(certUUID)
	cert.OrgID = id.OrgID(orgUUID)
	cert.Status = models.Status(status)
	cert.CreatedBy = id.UserID(createdBy)
	if current.Valid {
		cert.CurrentVersionID = id.CertificateVersionID(current.V)
	}
	return &cert, nil
}

func scanCertificates(rows *sql.Rows) ([]*models.Certificate, error) {
	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func scanVersionRow(row rowScanner) (*models.Version, error) {
	var (
		v          models.Version
		versionID  uuid.UUID
		certUUID   uuid.UUID
		fileUUID   uuid.UUID
		jwkRaw     []byte
		notBefore  sql.NullTime
		notAfter   sql.NullTime
		keySize    sql.NullInt64
		uploadedBy uuid.UUID
	)
	err := row.Scan(&versionID, &certUUID, &v.VersionNumber, &fileUUID, &jwkRaw,
		&v.SubjectDN, &v.IssuerDN, &v.SerialNumber, &notBefore, &notAfter,
		&v.KeyType, &v.KeyCurve, &keySize, &v.FingerprintSHA256, &v.IsCurrent,
		&uploadedBy, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate version: %w", err)
	}
	v.ID = id.CertificateVersionID(versionID)
	v.CertificateID = id.CertificateID(certUUID)
	v.FileID = id.FileID(fileUUID)
	if len(jwkRaw) > 0 {
		if err := json.Unmarshal(jwkRaw, &v.PublicKeyJWK); err != nil {
			return nil, fmt.Errorf("unmarshal public key jwk: %w", err)
		}
	}
	if notBefore.Valid {
		t := notBefore.Time
		v.NotValidBefore = &t
	}
	if notAfter.Valid {
		t := notAfter.Time
		v.NotValidAfter = &t
	}
	if keySize.Valid {
		v.KeySize = int(keySize.Int64)
	}
	v.UploadedBy = id.UserID(uploadedBy)
	return &v, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
