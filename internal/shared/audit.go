package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row of audit_logs. OwnerID scopes the entry to a lot pool.
type AuditLog struct {
	OwnerID  string
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// ErrAuditIncomplete is returned when a required audit field is empty.
var ErrAuditIncomplete = errors.New("audit: owner, action, entity and entity id are required")

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Validate checks the mandatory fields of an entry.
func (a AuditLog) Validate() error {
	if a.OwnerID == "" || a.Action == "" || a.Entity == "" || a.EntityID == "" {
		return ErrAuditIncomplete
	}
	return nil
}

// Record persists the log entry. A zero At falls back to the database clock.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	at := pgtype.Timestamptz{Time: log.At, Valid: !log.At.IsZero()}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (owner_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.OwnerID, log.ActorID, log.Action, log.Entity, log.EntityID, meta, at)
	return err
}
