package roleprofile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/db/models"
)

type templateItem struct {
	ItemType string `json:"item_type"`
	ItemID   uint64 `json:"item_id"`
}

type templateRequest struct {
	Assignments []templateItem `json:"assignments"`
}

// GetAssignments returns the role's training template.
func (s *Service) GetAssignments(c *fiber.Ctx) error {
	id, ok := parseRoleID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid role id",
		})
	}

	if err := s.db.First(&models.Role{}, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "role not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role",
		})
	}

	var template []models.RoleAssignment
	if err := s.db.Where("role_id = ?", id).
		Order("item_type, item_id").Find(&template).Error; err != nil {
		log.Error().Err(err).Uint("role_id", id).Msg("failed to load role template")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role template",
		})
	}

	out := make([]templateItem, 0, len(template))
	for _, row := range template {
		out = append(out, templateItem{
			ItemType: string(row.ItemType),
			ItemID:   row.ItemID,
		})
	}

	return c.JSON(fiber.Map{
		"role_id":     id,
		"assignments": out,
	})
}

// PutAssignments replaces the role's training template. The swap happens in
// one transaction. Existing holders of the role are not reconciled here; their
// assignments update on their next role change.
func (s *Service) PutAssignments(c *fiber.Ctx) error {
	id, ok := parseRoleID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid role id",
		})
	}

	var in templateRequest

	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// Deduplicate and validate before touching the database.
	seen := make(map[models.ItemKey]struct{}, len(in.Assignments))
	rows := make([]models.RoleAssignment, 0, len(in.Assignments))

	for _, item := range in.Assignments {
		itemType := models.ItemType(item.ItemType)
		if !itemType.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "item type must be module or document",
			})
		}

		if item.ItemID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "item_id is required",
			})
		}

		key := models.ItemKey{Type: itemType, ID: item.ItemID}
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		rows = append(rows, models.RoleAssignment{
			RoleID:   id,
			ItemType: itemType,
			ItemID:   item.ItemID,
		})
	}

	if err := s.db.First(&models.Role{}, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "role not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load role",
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).
			Delete(&models.RoleAssignment{}).Error; err != nil {
			return err
		}

		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint("role_id", id).Msg("failed to replace role template")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to replace role template",
		})
	}

	return c.JSON(fiber.Map{
		"message":       "role template replaced",
		"role_id":       id,
		"template_size": len(rows),
	})
}
