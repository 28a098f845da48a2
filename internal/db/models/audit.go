package models

import "time"

// AuditStatus is the lifecycle state of an audit.
type AuditStatus string

const (
	// AuditStatusPlanned indicates the audit is scheduled but not started.
	AuditStatusPlanned AuditStatus = "planned"
	// AuditStatusInProgress indicates the audit is being carried out.
	AuditStatusInProgress AuditStatus = "in_progress"
	// AuditStatusClosed indicates the audit is finished.
	AuditStatusClosed AuditStatus = "closed"
)

// Valid reports whether the status is one of the known values.
func (s AuditStatus) Valid() bool {
	switch s {
	case AuditStatusPlanned, AuditStatusInProgress, AuditStatusClosed:
		return true
	}

	return false
}

// Audit is an internal or external audit record. Findings that require
// action raise Issue rows linked back to the audit.
type Audit struct {
	// ID is the unique identifier for the audit.
	ID uint64 `gorm:"primaryKey"`
	// Title is the audit title.
	Title string `gorm:"size:255;not null"`
	// Standard is the audited standard or scheme (e.g., "BRCGS Food v9").
	Standard string `gorm:"size:100"`
	// Status is the audit lifecycle state.
	Status AuditStatus `gorm:"type:varchar(20);not null;default:'planned'"`
	// ScheduledFor is the planned audit date.
	ScheduledFor time.Time
	// CreatedAt is the timestamp when the audit was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the audit was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Audit model.
// This overrides GORM's default pluralized table naming.
func (Audit) TableName() string {
	return "audits"
}
