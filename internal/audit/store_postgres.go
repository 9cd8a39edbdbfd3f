package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "annuaire/pkg/domain"
)

// PostgresStore appends audit events to the audit_logs table. Rows are
// never updated or deleted.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, org_id, actor_id, actor_email, action, resource_type, resource_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), uuid.UUID(event.OrgID), uuid.UUID(event.ActorID), event.ActorEmail,
		string(event.Action), string(event.ResourceType), event.ResourceID, metadata, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByResource(ctx context.Context, resourceType ResourceType, resourceID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, actor_id, actor_email, action, resource_type, resource_id, metadata, created_at
		FROM audit_logs
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at ASC`,
		string(resourceType), resourceID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e            Event
			orgID        uuid.UUID
			actorID      uuid.UUID
			action       string
			resourceKind string
			metadataRaw  []byte
		)
		err := rows.Scan(&orgID, &actorID, &e.ActorEmail, &action, &resourceKind,
			&e.ResourceID, &metadataRaw, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.OrgID = id.OrgID(orgID)
		e.ActorID = id.UserID(actorID)
		e.Action = Action(action)
		e.ResourceType = ResourceType(resourceKind)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
