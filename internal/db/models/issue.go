package models

import "time"

// Issue is a corrective action raised from an audit finding or reported
// directly. Issues stay open until resolved.
type Issue struct {
	// ID is the unique identifier for the issue.
	ID uint64 `gorm:"primaryKey"`
	// Title is a short summary of the issue.
	Title string `gorm:"size:255;not null"`
	// Detail describes the finding and required action.
	Detail string `gorm:"size:2000"`
	// AuditID links the issue to the audit it was raised from, if any.
	AuditID *uint64 `gorm:"column:audit_id;index"`
	// Audit is the associated audit (loaded via foreign key).
	Audit *Audit `gorm:"foreignKey:AuditID"`
	// ResolvedAt is when the issue was resolved. Nil means the issue is open.
	ResolvedAt *time.Time
	// CreatedAt is the timestamp when the issue was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the issue was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Issue model.
// This overrides GORM's default pluralized table naming.
func (Issue) TableName() string {
	return "issues"
}
