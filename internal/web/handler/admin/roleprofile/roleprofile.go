// Package roleprofile provides handlers for managing role profiles: their
// permissions and the training template that drives assignment reconciliation.
package roleprofile

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/db/models"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
)

const (
	// Path is the base path for role profile management.
	Path = handler.APIPath + "/admin/roles"
)

// Service provides CRUD operations for role profiles.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
	auth      *auth.Service
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()
	s.auth = authService

	app.Get(Path,
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.List,
	)
	app.Get(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.Create,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.Update,
	)
	app.Delete(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.Delete,
	)
	app.Get(Path+"/:id/assignments",
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.GetAssignments,
	)
	app.Put(Path+"/:id/assignments",
		auth.RequirePermission(authService, auth.PermAdminRoles),
		s.PutAssignments,
	)
}

func parseRoleID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}

	return uint(id), true
}

// List returns all role profiles with their permission names.
func (s *Service) List(c *fiber.Ctx) error {
	var roles []models.Role
	if err := s.db.Order("name ASC").Find(&roles).Error; err != nil {
		log.Error().Err(err).Msg("failed to load roles")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load roles",
		})
	}

	out := make([]fiber.Map, 0, len(roles))

	for i := range roles {
		permissions, err := s.auth.GetRolePermissions(roles[i].ID)
		if err != nil {
			log.Error().Err(err).Uint("role_id", roles[i].ID).Msg("failed to load role permissions")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load role permissions",
			})
		}

		out = append(out, fiber.Map{
			"id":          roles[i].ID,
			"name":        roles[i].Name,
			"description": roles[i].Description,
			"permissions": permissions,
		})
	}

	return c.JSON(fiber.Map{
		"roles": out,
	})
}

// Get returns a single role profile with permissions and template size.
func (s *Service) Get(c *fiber.Ctx) error {
	id, ok := parseRoleID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid role id",
		})
	}

	var role models.Role
	if err := s.db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "role not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role",
		})
	}

	permissions, err := s.auth.GetRolePermissions(role.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role permissions",
		})
	}

	var templateSize int64
	if err := s.db.Model(&models.RoleAssignment{}).
		Where("role_id = ?", role.ID).Count(&templateSize).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role template",
		})
	}

	return c.JSON(fiber.Map{
		"id":            role.ID,
		"name":          role.Name,
		"description":   role.Description,
		"permissions":   permissions,
		"template_size": templateSize,
	})
}

type roleRequest struct {
	Name        string   `json:"name"        validate:"required,min=2,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Permissions []string `json:"permissions"`
}

// Create creates a role profile and attaches the named permissions.
func (s *Service) Create(c *fiber.Ctx) error {
	var in roleRequest

	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation failed",
			"details": err.Error(),
		})
	}

	role := models.Role{
		Name:        in.Name,
		Description: in.Description,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}

		return replacePermissions(tx, role.ID, in.Permissions)
	})
	if err != nil {
		log.Error().Err(err).Str("name", in.Name).Msg("failed to create role")

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "failed to create role",
			"details": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
	})
}

// Update updates a role profile and replaces its permissions.
func (s *Service) Update(c *fiber.Ctx) error {
	id, ok := parseRoleID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid role id",
		})
	}

	var in roleRequest

	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation failed",
			"details": err.Error(),
		})
	}

	var role models.Role
	if err := s.db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "role not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role",
		})
	}

	role.Name = in.Name
	role.Description = in.Description

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&role).Error; err != nil {
			return err
		}

		return replacePermissions(tx, role.ID, in.Permissions)
	})
	if err != nil {
		log.Error().Err(err).Uint("role_id", id).Msg("failed to update role")

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "failed to update role",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "role updated",
		"id":      role.ID,
	})
}

// Delete removes a role profile. Roles still held by users are protected.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, ok := parseRoleID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid role id",
		})
	}

	var role models.Role
	if err := s.db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "role not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role",
		})
	}

	if role.IsSystem {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "system roles cannot be deleted",
		})
	}

	var userCount int64
	if err := s.db.Model(&models.User{}).
		Where("role_id = ?", id).Count(&userCount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check role usage",
		})
	}

	if userCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      "role is still assigned to users",
			"user_count": userCount,
		})
	}

	res := s.db.Delete(&models.Role{}, id)
	if res.Error != nil {
		log.Error().Err(res.Error).Uint("role_id", id).Msg("failed to delete role")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete role",
		})
	}

	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "role not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "role deleted",
		"id":      id,
	})
}

// replacePermissions swaps the role's permission set for the named ones.
// Unknown permission names are rejected.
func replacePermissions(tx *gorm.DB, roleID uint, names []string) error {
	if err := tx.Where("role_id = ?", roleID).
		Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}

	for _, name := range names {
		var permission models.Permission
		if err := tx.Where("name = ?", name).First(&permission).Error; err != nil {
			return errors.New("unknown permission: " + name)
		}

		if err := tx.Create(&models.RolePermission{
			RoleID:       roleID,
			PermissionID: permission.ID,
		}).Error; err != nil {
			return err
		}
	}

	return nil
}
