package models

import "time"

// TrainingLog is a per-day record of a training session for a user and topic.
// Rows are upserted on (auth_id, topic, date) so recording the same session
// twice on one day does not create duplicate entries, regardless of outcome.
type TrainingLog struct {
	// ID is the unique identifier for the log row.
	ID uint64 `gorm:"primaryKey"`
	// AuthID is the stable identity of the trained user.
	AuthID string `gorm:"size:36;not null;uniqueIndex:idx_training_log_day"`
	// Topic is the trained topic, derived from the item name.
	Topic string `gorm:"size:255;not null;uniqueIndex:idx_training_log_day"`
	// Date is the training day in YYYY-MM-DD form.
	Date string `gorm:"size:10;not null;uniqueIndex:idx_training_log_day"`
	// ItemType is the kind of the trained item.
	ItemType ItemType `gorm:"type:varchar(20);not null"`
	// ItemID is the ID of the trained module or document.
	ItemID uint64 `gorm:"not null"`
	// Outcome is the session result.
	Outcome TrainingOutcome `gorm:"type:varchar(20);not null"`
	// CreatedAt is the timestamp when the row was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the row was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the TrainingLog model.
// This overrides GORM's default pluralized table naming.
func (TrainingLog) TableName() string {
	return "training_logs"
}
