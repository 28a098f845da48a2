package models

import "time"

// Shift is a planned working period that users are assigned to, optionally
// scoped to a department.
type Shift struct {
	// ID is the unique identifier for the shift.
	ID uint64 `gorm:"primaryKey"`
	// Name is the shift display name (e.g., "Early", "Night").
	Name string `gorm:"size:100;not null"`
	// DepartmentID is the department the shift belongs to, if any.
	DepartmentID *uint `gorm:"column:department_id"`
	// Department is the associated department (loaded via foreign key).
	Department *Department `gorm:"foreignKey:DepartmentID"`
	// StartsAt is when the shift begins.
	StartsAt time.Time `gorm:"not null"`
	// EndsAt is when the shift ends.
	EndsAt time.Time `gorm:"not null"`
	// CreatedAt is the timestamp when the shift was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the shift was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Shift model.
// This overrides GORM's default pluralized table naming.
func (Shift) TableName() string {
	return "shifts"
}
