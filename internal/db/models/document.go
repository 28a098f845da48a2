package models

import "time"

// Document is a controlled document (procedure, policy, work instruction)
// that users can be required to read and sign off as part of their training.
type Document struct {
	// ID is the unique identifier for the document.
	ID uint64 `gorm:"primaryKey"`
	// Title is the document title.
	Title string `gorm:"size:255;not null"`
	// Reference is the unique document reference code (e.g., "SOP-014").
	Reference string `gorm:"unique;size:50;not null"`
	// Version is the current issue number of the document.
	Version int `gorm:"default:1"`
	// Active indicates whether the document is current or withdrawn.
	Active bool `gorm:"default:true"`
	// CreatedAt is the timestamp when the document was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the document was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Document model.
// This overrides GORM's default pluralized table naming.
func (Document) TableName() string {
	return "documents"
}
