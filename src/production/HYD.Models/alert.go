package hydmodels

import "time"

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SystemAlert is an append-only ledger entry. Resolved only ever moves from false to true.
type SystemAlert struct {
	ID         int64      `json:"id" db:"id"`
	DeviceID   string     `json:"device_id" db:"device_id"`
	AlertType  string     `json:"alert_type" db:"alert_type"`
	Room       *string    `json:"room" db:"room"`
	Message    string     `json:"message" db:"message"`
	Severity   string     `json:"severity" db:"severity"`
	Resolved   bool       `json:"resolved" db:"resolved"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at" db:"resolved_at"`
}
