package models

import "time"

// TrainingModule is a trainable unit of content. Modules may link controlled
// documents that are read as part of the training; completing the module
// cascades completion to the linked documents' assignments.
type TrainingModule struct {
	// ID is the unique identifier for the module.
	ID uint64 `gorm:"primaryKey"`
	// Name is the unique module name, also used as the training log topic.
	Name string `gorm:"unique;size:255;not null"`
	// Description provides a human-readable summary of the module content.
	Description string `gorm:"size:1000"`
	// Active indicates whether the module can still be assigned.
	Active bool `gorm:"default:true"`
	// FollowUpPeriod is the interval after completion at which a follow-up
	// check is due. Empty disables follow-ups.
	FollowUpPeriod Period `gorm:"type:varchar(20)"`
	// RefreshPeriod is the interval after completion at which the training
	// must be refreshed. Empty disables refreshers.
	RefreshPeriod Period `gorm:"type:varchar(20)"`
	// CreatedAt is the timestamp when the module was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the module was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the TrainingModule model.
// This overrides GORM's default pluralized table naming.
func (TrainingModule) TableName() string {
	return "training_modules"
}
