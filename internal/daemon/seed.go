package daemon

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/db/models"
)

// seed makes sure the permission catalog, the system roles and a first admin
// account exist. It only creates what is missing and never overwrites.
func seed(_ *config.Config, db *gorm.DB) {
	seedPermissions(db)

	adminRole := seedRole(db, "admin", "Full administrative access", auth.AllPermissions)
	seedRole(db, "user", "Basic access to own training", []string{
		auth.PermDashboardView,
		auth.PermDocumentRead,
	})

	// Create a default admin user when the user table is empty.
	var count int64

	db.Model(&models.User{}).Count(&count)

	if count == 0 && adminRole != nil {
		admin := models.User{
			AuthID:   uuid.NewString(),
			Username: "admin",
			Email:    "admin@localhost",
			Password: models.HashPassword("changeme"),
			Active:   true,
			RoleID:   &adminRole.ID,
		}

		if err := db.Create(&admin).Error; err != nil {
			log.Error().Err(err).Msg("failed to seed admin user")
			return
		}

		log.Warn().Msg("seeded default admin user with password 'changeme', change it immediately")
	}
}

// seedPermissions creates a database row for every known permission name.
func seedPermissions(db *gorm.DB) {
	for _, name := range auth.AllPermissions {
		resource, action, _ := strings.Cut(name, ".")

		var existing models.Permission
		if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
			continue
		}

		if err := db.Create(&models.Permission{
			Name:     name,
			Resource: resource,
			Action:   action,
		}).Error; err != nil {
			log.Error().Err(err).Str("permission", name).Msg("failed to seed permission")
		}
	}
}

// seedRole creates a system role with the given permissions when it does not
// exist yet.
func seedRole(db *gorm.DB, name, description string, permissions []string) *models.Role {
	var role models.Role

	err := db.Where("name = ?", name).First(&role).Error
	if err == nil {
		return &role
	}

	role = models.Role{
		Name:        name,
		Description: description,
		IsSystem:    true,
	}

	if err := db.Create(&role).Error; err != nil {
		log.Error().Err(err).Str("role", name).Msg("failed to seed role")
		return nil
	}

	for _, permName := range permissions {
		var permission models.Permission
		if err := db.Where("name = ?", permName).First(&permission).Error; err != nil {
			continue
		}

		if err := db.Create(&models.RolePermission{
			RoleID:       role.ID,
			PermissionID: permission.ID,
		}).Error; err != nil {
			log.Error().Err(err).Str("role", name).Str("permission", permName).
				Msg("failed to seed role permission")
		}
	}

	return &role
}
