package models

import "time"

// Department groups users for shift planning and reporting.
type Department struct {
	// ID is the unique identifier for the department.
	ID uint `gorm:"primaryKey"`
	// Name is the unique department name.
	Name string `gorm:"unique;size:100;not null"`
	// Description provides a human-readable description of the department.
	Description string `gorm:"size:255"`
	// CreatedAt is the timestamp when the department was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the department was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Department model.
// This overrides GORM's default pluralized table naming.
func (Department) TableName() string {
	return "departments"
}
