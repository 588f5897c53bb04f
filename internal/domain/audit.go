package domain

import "time"

// AuditStatus is the recorded outcome of a privileged-action attempt.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// AuditEntry is one append-only record of a privileged action, success or
// failure. Entries are never mutated or deleted.
type AuditEntry struct {
	ID         string                 `json:"id" db:"id"`
	ActorUID   string                 `json:"actorUid" db:"actor_uid"`
	ActorEmail string                 `json:"actorEmail" db:"actor_email"`
	Action     string                 `json:"action" db:"action"`
	Status     AuditStatus            `json:"status" db:"status"`
	Details    map[string]interface{} `json:"details" db:"details"`
	CreatedAt  time.Time              `json:"createdAt" db:"created_at"`
}
