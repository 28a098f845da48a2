// Package shift provides handlers for managing shifts and their crew.
package shift

import (
	"errors"
	"strconv"
	"time"

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
	// Path is the base path for shift management.
	Path = handler.APIPath + "/shifts"
)

// Service provides CRUD operations for shifts.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
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

	app.Get(Path,
		auth.RequirePermission(authService, auth.PermShiftManage),
		s.List,
	)
	app.Get(Path+"/:id",
		auth.RequirePermission(authService, auth.PermShiftManage),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermShiftManage),
		s.Create,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, auth.PermShiftManage),
		s.Update,
	)
	app.Delete(Path+"/:id",
		auth.RequirePermission(authService, auth.PermShiftManage),
		s.Delete,
	)
	app.Put(Path+"/:id/assignments",
		auth.RequirePermission(authService, auth.PermShiftManage),
		s.PutAssignments,
	)
}

func parseShiftID(c *fiber.Ctx) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}

	return id, true
}

// List returns shifts, optionally filtered by department.
func (s *Service) List(c *fiber.Ctx) error {
	tx := s.db.Model(&models.Shift{}).Preload("Department")

	if c.Query("department_id") != "" {
		tx = tx.Where("department_id = ?", c.QueryInt("department_id"))
	}

	var shifts []models.Shift
	if err := tx.Order("starts_at").Find(&shifts).Error; err != nil {
		log.Error().Err(err).Msg("query shifts failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load shifts",
		})
	}

	return c.JSON(fiber.Map{
		"shifts": shifts,
	})
}

// Get returns a single shift with its crew.
func (s *Service) Get(c *fiber.Ctx) error {
	id, ok := parseShiftID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid shift id",
		})
	}

	var shift models.Shift
	if err := s.db.Preload("Department").First(&shift, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "shift not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load shift",
		})
	}

	var assignments []models.ShiftAssignment
	if err := s.db.Where("shift_id = ?", id).
		Preload("User").Find(&assignments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load shift crew",
		})
	}

	crew := make([]fiber.Map, 0, len(assignments))
	for i := range assignments {
		crew = append(crew, fiber.Map{
			"user_id":  assignments[i].UserID,
			"username": assignments[i].User.Username,
			"name":     assignments[i].User.DisplayName(),
		})
	}

	return c.JSON(fiber.Map{
		"shift": shift,
		"crew":  crew,
	})
}

type shiftRequest struct {
	Name         string    `json:"name"          validate:"required,min=2,max=100"`
	DepartmentID *uint     `json:"department_id"`
	StartsAt     time.Time `json:"starts_at"     validate:"required"`
	EndsAt       time.Time `json:"ends_at"       validate:"required"`
}

// Create creates a new shift.
func (s *Service) Create(c *fiber.Ctx) error {
	var in shiftRequest

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

	if !in.EndsAt.After(in.StartsAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ends_at must be after starts_at",
		})
	}

	shift := models.Shift{
		Name:         in.Name,
		DepartmentID: in.DepartmentID,
		StartsAt:     in.StartsAt,
		EndsAt:       in.EndsAt,
	}

	if err := s.db.Create(&shift).Error; err != nil {
		log.Error().Err(err).Str("name", in.Name).Msg("failed to create shift")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create shift",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(shift)
}

// Update updates a shift.
func (s *Service) Update(c *fiber.Ctx) error {
	id, ok := parseShiftID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid shift id",
		})
	}

	var in shiftRequest

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

	if !in.EndsAt.After(in.StartsAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ends_at must be after starts_at",
		})
	}

	var shift models.Shift
	if err := s.db.First(&shift, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "shift not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load shift",
		})
	}

	shift.Name = in.Name
	shift.DepartmentID = in.DepartmentID
	shift.StartsAt = in.StartsAt
	shift.EndsAt = in.EndsAt

	if err := s.db.Save(&shift).Error; err != nil {
		log.Error().Err(err).Uint64("shift_id", id).Msg("failed to update shift")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update shift",
		})
	}

	return c.JSON(shift)
}

// Delete removes a shift. Crew assignments cascade.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, ok := parseShiftID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid shift id",
		})
	}

	res := s.db.Delete(&models.Shift{}, id)
	if res.Error != nil {
		log.Error().Err(res.Error).Uint64("shift_id", id).Msg("failed to delete shift")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete shift",
		})
	}

	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "shift not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "shift deleted",
		"id":      id,
	})
}

type crewRequest struct {
	UserIDs []uint64 `json:"user_ids"`
}

// PutAssignments replaces the shift's crew wholesale in one transaction.
func (s *Service) PutAssignments(c *fiber.Ctx) error {
	id, ok := parseShiftID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid shift id",
		})
	}

	var in crewRequest

	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.db.First(&models.Shift{}, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "shift not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load shift",
		})
	}

	for _, userID := range in.UserIDs {
		if err := s.db.First(&models.User{}, userID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "unknown user",
				"user_id": userID,
			})
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shift_id = ?", id).
			Delete(&models.ShiftAssignment{}).Error; err != nil {
			return err
		}

		for _, userID := range in.UserIDs {
			if err := tx.Create(&models.ShiftAssignment{
				ShiftID: id,
				UserID:  userID,
			}).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint64("shift_id", id).Msg("failed to replace shift crew")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to replace shift crew",
		})
	}

	return c.JSON(fiber.Map{
		"message":   "shift crew replaced",
		"shift_id":  id,
		"crew_size": len(in.UserIDs),
	})
}
