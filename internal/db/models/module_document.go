package models

import "time"

// ModuleDocument links a controlled document to a training module. Completing
// the module cascades completion to the linked documents' user assignments.
type ModuleDocument struct {
	// ModuleID is the ID of the training module in this link.
	ModuleID uint64 `gorm:"primaryKey;column:module_id"`
	// DocumentID is the ID of the document in this link.
	DocumentID uint64 `gorm:"primaryKey;column:document_id"`
	// Module is the associated module (loaded via foreign key).
	// When a module is deleted, its document links are automatically removed (CASCADE).
	Module TrainingModule `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	// Document is the associated document (loaded via foreign key).
	// When a document is deleted, its module links are automatically removed (CASCADE).
	Document Document `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the link was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the ModuleDocument model.
// This overrides GORM's default pluralized table naming.
func (ModuleDocument) TableName() string {
	return "module_documents"
}
