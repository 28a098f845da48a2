package models

import "time"

// UserTrainingCompletion is an append-only ledger of completed training
// items. A row is written whenever a UserAssignment is completed and is kept
// even after the live assignment is removed by a role change. When an item is
// re-assigned later (e.g., the user returns to a former role) the ledger lets
// the reconciler restore the prior completion date instead of forcing
// re-training.
type UserTrainingCompletion struct {
	// ID is the unique identifier for the ledger row.
	ID uint64 `gorm:"primaryKey"`
	// AuthID is the stable identity of the user who completed the item.
	AuthID string `gorm:"size:36;not null;uniqueIndex:idx_completion_item"`
	// ItemID is the ID of the completed module or document.
	ItemID uint64 `gorm:"not null;uniqueIndex:idx_completion_item"`
	// ItemType is the kind of the completed item.
	ItemType ItemType `gorm:"type:varchar(20);not null;uniqueIndex:idx_completion_item"`
	// CompletedAt is when the item was originally completed.
	CompletedAt time.Time `gorm:"not null"`
	// CompletedByRoleID is the role the user held when completing the item, if known.
	CompletedByRoleID *uint `gorm:"column:completed_by_role_id"`
	// CreatedAt is the timestamp when the ledger row was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserTrainingCompletion model.
// This overrides GORM's default pluralized table naming.
func (UserTrainingCompletion) TableName() string {
	return "user_training_completions"
}

// Key returns the item key of the ledger row.
func (c UserTrainingCompletion) Key() ItemKey {
	return ItemKey{Type: c.ItemType, ID: c.ItemID}
}
