package models

import "time"

// RoleAssignment is a template association between a role profile and a
// trainable item. The set of RoleAssignment rows for a role describes what
// every holder of that role must be assigned. The reconciler treats these
// rows as read-only input; they are maintained by role configuration.
//
// A role's template may contain redundant rows for the same item, so readers
// must deduplicate by (item_type, item_id).
type RoleAssignment struct {
	// ID is the unique identifier for the template row.
	ID uint `gorm:"primaryKey"`
	// RoleID is the role profile this template row belongs to.
	RoleID uint `gorm:"not null;uniqueIndex:idx_role_item"`
	// ItemType is the kind of item (module or document).
	ItemType ItemType `gorm:"type:varchar(20);not null;uniqueIndex:idx_role_item"`
	// ItemID is the ID of the module or document.
	ItemID uint64 `gorm:"not null;uniqueIndex:idx_role_item"`
	// Role is the associated role (loaded via foreign key).
	// When a role is deleted, its template rows are automatically removed (CASCADE).
	Role Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the template row was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the RoleAssignment model.
// This overrides GORM's default pluralized table naming.
func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// Key returns the deduplication key of the template row.
func (a RoleAssignment) Key() ItemKey {
	return ItemKey{Type: a.ItemType, ID: a.ItemID}
}

// ItemKey identifies a trainable item. Type is part of the identity: the same
// numeric ID under module and document are distinct keys.
type ItemKey struct {
	Type ItemType
	ID   uint64
}
