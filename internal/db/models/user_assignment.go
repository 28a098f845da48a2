package models

import "time"

// UserAssignment is the live, per-user record of an assigned training item.
// An assignment with a non-nil CompletedAt is historically significant and
// must never be deleted as a side effect of a role change.
type UserAssignment struct {
	// ID is the unique identifier for the assignment.
	ID uint64 `gorm:"primaryKey"`
	// AuthID is the stable identity of the user the item is assigned to.
	AuthID string `gorm:"size:36;not null;uniqueIndex:idx_user_item"`
	// ItemID is the ID of the assigned module or document.
	ItemID uint64 `gorm:"not null;uniqueIndex:idx_user_item"`
	// ItemType is the kind of the assigned item.
	ItemType ItemType `gorm:"type:varchar(20);not null;uniqueIndex:idx_user_item"`
	// AssignedAt is when the item was assigned to the user.
	AssignedAt time.Time `gorm:"not null"`
	// CompletedAt is when the user completed the item. Nil means the
	// assignment is still open.
	CompletedAt *time.Time
	// TrainingOutcome is the recorded result of the most recent training
	// session for this assignment, if any.
	TrainingOutcome TrainingOutcome `gorm:"type:varchar(20)"`
	// CreatedAt is the timestamp when the row was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the row was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the UserAssignment model.
// This overrides GORM's default pluralized table naming.
func (UserAssignment) TableName() string {
	return "user_assignments"
}

// Key returns the item key of the assignment.
func (a UserAssignment) Key() ItemKey {
	return ItemKey{Type: a.ItemType, ID: a.ItemID}
}

// Completed reports whether the assignment has been completed.
func (a UserAssignment) Completed() bool {
	return a.CompletedAt != nil
}
