package model

const (
	AuditActionShared             = "shared"
	AuditActionRevoked            = "revoked"
	AuditActionAccessed           = "accessed"
	AuditActionVerificationFailed = "verification_failed"
	AuditActionStatusChanged      = "status_changed"
	AuditActionSecurityAlert      = "security_alert"
)

// AuditEvent is an append-only record of share activity. Rows are never
// updated or deleted by this service; retention is an operational concern.
type AuditEvent struct {
	ID          string            `json:"id"`
	QuotationID string            `json:"quotation_id"`
	Action      string            `json:"action"`
	Actor       string            `json:"actor"`
	UserAgent   string            `json:"user_agent"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Ctime       int64             `json:"ctime"`
}
