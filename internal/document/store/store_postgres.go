package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"annuaire/internal/document/models"
	id "annuaire/pkg/domain"
	"annuaire/pkg/platform/sentinel"
)

// PostgresStore persists documents in PostgreSQL. Mutating operations
// lock the document row with FOR UPDATE before invoking callbacks;
// Publish additionally locks the verification method rows so the
// revoked-reference check cannot race the revocation cascade.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const docColumns = `id, org_id, owner_id, owner_email, owner_name, label, did_uri, status,
	draft_content, content,
	submitted_by, submitted_at, reviewed_by, reviewed_at, review_comment,
	current_version_id, created_at, updated_at`

const methodColumns = `id, document_id, certificate_id, fragment, method_type, relationships, is_active, created_at`

const versionColumns = `id, document_id, version_number, content, signature, registrar_response, published_by, published_at`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO did_documents (id, org_id, owner_id, owner_email, owner_name, label, did_uri, status, draft_content, review_comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(doc.ID), uuid.UUID(doc.OrgID), uuid.UUID(doc.OwnerID), doc.OwnerEmail, doc.OwnerName,
		doc.Label, doc.DIDURI, string(doc.Status), nullableJSON(doc.DraftContent), doc.ReviewComment,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM did_documents WHERE id = $1`, uuid.UUID(docID))
	return scanDocument(row)
}

func (s *PostgresStore) FindPublishedByDIDURI(ctx context.Context, didURI string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM did_documents
		 WHERE did_uri = $1 AND status IN ('PUBLISHED', 'DEACTIVATED')`, didURI)
	return scanDocument(row)
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+docColumns+` FROM did_documents WHERE org_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, orgID id.OrgID, ownerID id.UserID) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+docColumns+` FROM did_documents
		 WHERE org_id = $1 AND owner_id = $2 ORDER BY created_at DESC`,
		uuid.UUID(orgID), uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list documents by owner: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *PostgresStore) Execute(
	ctx context.Context,
	docID id.DocumentID,
	validate func(doc *models.Document, methods []*models.VerificationMethod) error,
	mutate func(doc *models.Document),
) (*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin document execute: %w", err)
	}
	defer tx.Rollback()

	doc, err := lockDocument(ctx, tx, docID)
	if err != nil {
		return nil, err
	}
	methods, err := listMethodsTx(ctx, tx, docID, false)
	if err != nil {
		return nil, err
	}
	if err := validate(doc, methods); err != nil {
		return nil, err
	}
	mutate(doc)

	if err := updateDocument(ctx, tx, doc); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document execute: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListMethods(ctx context.Context, docID id.DocumentID) ([]*models.VerificationMethod, error) {
	if _, err := s.FindByID(ctx, docID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+methodColumns+` FROM document_verification_methods
		 WHERE document_id = $1 ORDER BY created_at ASC`,
		uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("list verification methods: %w", err)
	}
	defer rows.Close()
	return scanMethods(rows)
}

func (s *PostgresStore) AddMethod(
	ctx context.Context,
	docID id.DocumentID,
	build func(doc *models.Document, methods []*models.VerificationMethod) (*MethodChange, error),
) (*models.VerificationMethod, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add method: %w", err)
	}
	defer tx.Rollback()

	doc, err := lockDocument(ctx, tx, docID)
	if err != nil {
		return nil, err
	}
	methods, err := listMethodsTx(ctx, tx, docID, false)
	if err != nil {
		return nil, err
	}
	change, err := build(doc, methods)
	if err != nil {
		return nil, err
	}

	vm := change.Method
	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_verification_methods (`+methodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(vm.ID), uuid.UUID(vm.DocumentID), uuid.UUID(vm.CertificateID),
		vm.Fragment, vm.MethodType, pq.Array(relationshipStrings(vm.Relationships)),
		vm.IsActive, vm.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert verification method: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE did_documents SET draft_content = $1, updated_at = $2 WHERE id = $3`,
		nullableJSON(change.Draft), vm.CreatedAt, uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("refresh draft content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add method: %w", err)
	}
	return vm, nil
}

func (s *PostgresStore) RemoveMethod(
	ctx context.Context,
	docID id.DocumentID,
	fragment string,
	check func(doc *models.Document, method *models.VerificationMethod, remaining []*models.VerificationMethod) (json.RawMessage, error),
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove method: %w", err)
	}
	defer tx.Rollback()

	doc, err := lockDocument(ctx, tx, docID)
	if err != nil {
		return err
	}
	methods, err := listMethodsTx(ctx, tx, docID, false)
	if err != nil {
		return err
	}

	var target *models.VerificationMethod
	remaining := make([]*models.VerificationMethod, 0, len(methods))
	for _, vm := range methods {
		if vm.Fragment == fragment {
			target = vm
			continue
		}
		remaining = append(remaining, vm)
	}
	if target == nil {
		return sentinel.ErrNotFound
	}

	draft, err := check(doc, target, remaining)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM document_verification_methods WHERE id = $1`, uuid.UUID(target.ID))
	if err != nil {
		return fmt.Errorf("delete verification method: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE did_documents SET draft_content = $1, updated_at = now() WHERE id = $2`,
		nullableJSON(draft), uuid.UUID(docID))
	if err != nil {
		return fmt.Errorf("refresh draft content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove method: %w", err)
	}
	return nil
}

func (s *PostgresStore) Publish(
	ctx context.Context,
	docID id.DocumentID,
	fn func(doc *models.Document, methods []*models.VerificationMethod, current *models.Version) (*models.Version, error),
) (*models.Document, *models.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	doc, err := lockDocument(ctx, tx, docID)
	if err != nil {
		return nil, nil, err
	}
	// Method rows are locked so a concurrent revocation cascade cannot
	// flip them between the revoked-reference check and the commit.
	methods, err := listMethodsTx(ctx, tx, docID, true)
	if err != nil {
		return nil, nil, err
	}
	current, err := currentVersionTx(ctx, tx, docID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, err
	}

	built, err := fn(doc, methods, current)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO did_document_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(built.ID), uuid.UUID(built.DocumentID), built.VersionNumber,
		[]byte(built.Content), built.Signature, nullableJSON(built.RegistrarResponse),
		uuid.UUID(built.PublishedBy), built.PublishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, sentinel.ErrConflict
		}
		return nil, nil, fmt.Errorf("insert document version: %w", err)
	}

	doc.ApplyPublication(built.Content, built.ID, built.PublishedAt)
	if err := updateDocument(ctx, tx, doc); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit publish: %w", err)
	}
	return doc, built, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, docID id.DocumentID) ([]*models.Version, error) {
	if _, err := s.FindByID(ctx, docID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM did_document_versions
		 WHERE document_id = $1 ORDER BY version_number DESC`,
		uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	var out []*models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CurrentVersion(ctx context.Context, docID id.DocumentID) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM did_document_versions
		 WHERE document_id = $1 ORDER BY version_number DESC LIMIT 1`,
		uuid.UUID(docID))
	return scanVersion(row)
}

func (s *PostgresStore) DeactivateByCertificate(ctx context.Context, certID id.CertificateID) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE document_verification_methods
		SET is_active = false
		WHERE certificate_id = $1 AND is_active`,
		uuid.UUID(certID))
	if err != nil {
		return 0, fmt.Errorf("deactivate verification methods: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deactivated methods: %w", err)
	}
	return int(affected), nil
}

// ── Internal helpers ─────────────────────────────────────────────────────

func lockDocument(ctx context.Context, tx *sql.Tx, docID id.DocumentID) (*models.Document, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM did_documents WHERE id = $1 FOR UPDATE`, uuid.UUID(docID))
	return scanDocument(row)
}

func listMethodsTx(ctx context.Context, tx *sql.Tx, docID id.DocumentID, lock bool) ([]*models.VerificationMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM document_verification_methods
		 WHERE document_id = $1 ORDER BY created_at ASC`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := tx.QueryContext(ctx, query, uuid.UUID(docID))
	if err != nil {
		return nil, fmt.Errorf("list verification methods: %w", err)
	}
	defer rows.Close()
	return scanMethods(rows)
}

func currentVersionTx(ctx context.Context, tx *sql.Tx, docID id.DocumentID) (*models.Version, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM did_document_versions
		 WHERE document_id = $1 ORDER BY version_number DESC LIMIT 1`,
		uuid.UUID(docID))
	return scanVersion(row)
}

func updateDocument(ctx context.Context, tx *sql.Tx, doc *models.Document) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE did_documents
		SET status = $1, draft_content = $2, content = $3,
		    submitted_by = $4, submitted_at = $5,
		    reviewed_by = $6, reviewed_at = $7, review_comment = $8,
		    current_version_id = $9, updated_at = $10
		WHERE id = $11`,
		string(doc.Status), nullableJSON(doc.DraftContent), nullableJSON(doc.Content),
		nullableUserID(doc.SubmittedBy), doc.SubmittedAt,
		nullableUserID(doc.ReviewedBy), doc.ReviewedAt, doc.ReviewComment,
		nullableUUID(uuid.UUID(doc.CurrentVersionID)), doc.UpdatedAt,
		uuid.UUID(doc.ID),
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc         models.Document
		docUUID     uuid.UUID
		orgUUID     uuid.UUID
		ownerUUID   uuid.UUID
		status      string
		draft       []byte
		content     []byte
		submittedBy sql.Null[uuid.UUID]
		submittedAt sql.NullTime
		reviewedBy  sql.Null[uuid.UUID]
		reviewedAt  sql.NullTime
		current     sql.Null[uuid.UUID]
	)
	err := row.Scan(&docUUID, &orgUUID, &ownerUUID, &doc.OwnerEmail, &doc.OwnerName,
		&doc.Label, &doc.DIDURI, &status,
		&draft, &content, &submittedBy, &submittedAt, &reviewedBy, &reviewedAt,
		&doc.ReviewComment, &current, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.ID = id.DocumentID(docUUID)
	doc.OrgID = id.OrgID(orgUUID)
	doc.OwnerID = id.UserID(ownerUUID)
	doc.Status = models.Status(status)
	doc.DraftContent = draft
	doc.Content = content
	if submittedBy.Valid {
		v := id.UserID(submittedBy.V)
		doc.SubmittedBy = &v
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		doc.SubmittedAt = &t
	}
	if reviewedBy.Valid {
		v := id.UserID(reviewedBy.V)
		doc.ReviewedBy = &v
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		doc.ReviewedAt = &t
	}
	if current.Valid {
		doc.CurrentVersionID = id.DocumentVersionID(current.V)
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*models.Document, error) {
	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func scanMethods(rows *sql.Rows) ([]*models.VerificationMethod, error) {
	var out []*models.VerificationMethod
	for rows.Next() {
		var (
			vm            models.VerificationMethod
			methodUUID    uuid.UUID
			docUUID       uuid.UUID
			certUUID      uuid.UUID
			relationships pq.StringArray
		)
		err := rows.Scan(&methodUUID, &docUUID, &certUUID, &vm.Fragment, &vm.MethodType,
			&relationships, &vm.IsActive, &vm.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan verification method: %w", err)
		}
		vm.ID = id.MethodID(methodUUID)
		vm.DocumentID = id.DocumentID(docUUID)
		vm.CertificateID = id.CertificateID(certUUID)
		vm.Relationships = make([]models.Relationship, 0, len(relationships))
		for _, r := range relationships {
			vm.Relationships = append(vm.Relationships, models.Relationship(r))
		}
		out = append(out, &vm)
	}
	return out, rows.Err()
}

func scanVersion(row rowScanner) (*models.Version, error) {
	var (
		v           models.Version
		versionUUID uuid.UUID
		docUUID     uuid.UUID
		content     []byte
		registrar   []byte
		publishedBy uuid.UUID
	)
	err := row.Scan(&versionUUID, &docUUID, &v.VersionNumber, &content, &v.Signature,
		&registrar, &publishedBy, &v.PublishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document version: %w", err)
	}
	v.ID = id.DocumentVersionID(versionUUID)
	v.DocumentID = id.DocumentID(docUUID)
	v.Content = content
	v.RegistrarResponse = registrar
	v.PublishedBy = id.UserID(publishedBy)
	return &v, nil
}

func relationshipStrings(tags []models.Relationship) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = string(tag)
	}
	return out
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}

func nullableUserID(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
