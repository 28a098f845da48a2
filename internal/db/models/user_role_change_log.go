package models

import "time"

// UserRoleChangeLog is an append-only audit row written once per role change.
// Failure to write the log never fails the role change itself.
type UserRoleChangeLog struct {
	// ID is the unique identifier for the log row.
	ID uint64 `gorm:"primaryKey"`
	// UserID is the user whose role changed.
	UserID uint64 `gorm:"not null;index"`
	// OldRoleID is the role the user held before the change. Nil if the user
	// had no role.
	OldRoleID *uint `gorm:"column:old_role_id"`
	// NewRoleID is the role the user holds after the change.
	NewRoleID uint `gorm:"column:new_role_id;not null"`
	// AssignmentsRemoved is the number of live assignments deleted by the change.
	AssignmentsRemoved int `gorm:"not null"`
	// AssignmentsAdded is the number of live assignments created by the change.
	AssignmentsAdded int `gorm:"not null"`
	// ChangedAt is when the role change happened.
	ChangedAt time.Time `gorm:"not null"`
}

// TableName specifies the database table name for the UserRoleChangeLog model.
// This overrides GORM's default pluralized table naming.
func (UserRoleChangeLog) TableName() string {
	return "user_role_change_logs"
}
