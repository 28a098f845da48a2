package models

import "time"

// ShiftAssignment represents the many-to-many relationship between shifts and users.
// Memberships are replaced wholesale when a shift's crew is edited.
type ShiftAssignment struct {
	// ShiftID is the ID of the shift in this membership.
	ShiftID uint64 `gorm:"primaryKey;column:shift_id"`
	// UserID is the ID of the user in this membership.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// Shift is the associated shift (loaded via foreign key).
	// When a shift is deleted, all its assignments are automatically removed (CASCADE).
	Shift Shift `gorm:"foreignKey:ShiftID;constraint:OnDelete:CASCADE"`
	// User is the associated user (loaded via foreign key).
	// When a user is deleted, all their shift assignments are automatically removed (CASCADE).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the user was added to the shift (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the ShiftAssignment model.
// This overrides GORM's default pluralized table naming.
func (ShiftAssignment) TableName() string {
	return "shift_assignments"
}
