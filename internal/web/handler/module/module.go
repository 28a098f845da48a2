// Package module provides handlers for managing training modules and their
// linked controlled documents.
package module

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
	// Path is the base path for training module management.
	Path = handler.APIPath + "/modules"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25
)

// Service provides CRUD operations for training modules.
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
		auth.RequireAnyPermission(authService, auth.PermModuleManage, auth.PermTrainingRecord),
		s.List,
	)
	app.Get(Path+"/:id",
		auth.RequireAnyPermission(authService, auth.PermModuleManage, auth.PermTrainingRecord),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermModuleManage),
		s.Create,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, auth.PermModuleManage),
		s.Update,
	)
	app.Delete(Path+"/:id",
		auth.RequirePermission(authService, auth.PermModuleManage),
		s.Retire,
	)
	app.Put(Path+"/:id/documents",
		auth.RequirePermission(authService, auth.PermModuleManage),
		s.PutDocuments,
	)
}

// List returns modules with pagination and search.
func (s *Service) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("pageSize", DefaultPageSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}

	search := c.Query("search", "")

	var (
		modules []models.TrainingModule
		total   int64
		tx      = s.db.Model(&models.TrainingModule{})
	)

	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	if c.Query("active") != "" {
		tx = tx.Where("active = ?", c.QueryBool("active"))
	}

	if err := tx.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("count modules failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load modules",
		})
	}

	offset := (page - 1) * pageSize
	if err := tx.Order("name").Limit(pageSize).Offset(offset).
		Find(&modules).Error; err != nil {
		log.Error().Err(err).Msg("query modules failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load modules",
		})
	}

	return c.JSON(fiber.Map{
		"modules":     modules,
		"page":        page,
		"page_size":   pageSize,
		"total_items": total,
	})
}

// Get returns a single module with its linked documents.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid module id",
		})
	}

	var module models.TrainingModule
	if err := s.db.First(&module, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "module not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load module",
		})
	}

	var links []models.ModuleDocument
	if err := s.db.Where("module_id = ?", id).
		Preload("Document").Find(&links).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load linked documents",
		})
	}

	documents := make([]models.Document, 0, len(links))
	for _, link := range links {
		documents = append(documents, link.Document)
	}

	return c.JSON(fiber.Map{
		"module":           module,
		"linked_documents": documents,
	})
}

type moduleRequest struct {
	Name           string `json:"name"             validate:"required,min=2,max=255"`
	Description    string `json:"description"      validate:"max=1000"`
	FollowUpPeriod string `json:"follow_up_period"`
	RefreshPeriod  string `json:"refresh_period"`
}

// validatePeriods checks the optional period fields against the known values.
func validatePeriods(in *moduleRequest) error {
	if !models.Period(in.FollowUpPeriod).ValidFollowUp() {
		return errors.New("invalid follow_up_period")
	}

	if !models.Period(in.RefreshPeriod).ValidRefresh() {
		return errors.New("invalid refresh_period")
	}

	return nil
}

// Create creates a new training module.
func (s *Service) Create(c *fiber.Ctx) error {
	var in moduleRequest

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

	if err := validatePeriods(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	module := models.TrainingModule{
		Name:           in.Name,
		Description:    in.Description,
		Active:         true,
		FollowUpPeriod: models.Period(in.FollowUpPeriod),
		RefreshPeriod:  models.Period(in.RefreshPeriod),
	}

	if err := s.db.Create(&module).Error; err != nil {
		log.Error().Err(err).Str("name", in.Name).Msg("failed to create module")

		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "failed to create module, name may already exist",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(module)
}

// Update updates a training module.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid module id",
		})
	}

	var in moduleRequest

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

	if err := validatePeriods(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var module models.TrainingModule
	if err := s.db.First(&module, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "module not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load module",
		})
	}

	module.Name = in.Name
	module.Description = in.Description
	module.FollowUpPeriod = models.Period(in.FollowUpPeriod)
	module.RefreshPeriod = models.Period(in.RefreshPeriod)

	if err := s.db.Save(&module).Error; err != nil {
		log.Error().Err(err).Uint64("module_id", id).Msg("failed to update module")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update module",
		})
	}

	return c.JSON(module)
}

// Retire marks a module inactive. Modules are never hard deleted so
// historical training records keep their target.
func (s *Service) Retire(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid module id",
		})
	}

	res := s.db.Model(&models.TrainingModule{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		log.Error().Err(res.Error).Uint64("module_id", id).Msg("failed to retire module")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retire module",
		})
	}

	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "module not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "module retired",
		"id":      id,
	})
}

type documentsRequest struct {
	DocumentIDs []uint64 `json:"document_ids"`
}

// PutDocuments replaces the module's linked documents in one transaction.
func (s *Service) PutDocuments(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid module id",
		})
	}

	var in documentsRequest

	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.db.First(&models.TrainingModule{}, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "module not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load module",
		})
	}

	// Every referenced document must exist before the swap.
	for _, docID := range in.DocumentIDs {
		if err := s.db.First(&models.Document{}, docID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":       "unknown document",
				"document_id": docID,
			})
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("module_id = ?", id).
			Delete(&models.ModuleDocument{}).Error; err != nil {
			return err
		}

		for _, docID := range in.DocumentIDs {
			if err := tx.Create(&models.ModuleDocument{
				ModuleID:   id,
				DocumentID: docID,
			}).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint64("module_id", id).Msg("failed to replace linked documents")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to replace linked documents",
		})
	}

	return c.JSON(fiber.Map{
		"message":        "linked documents replaced",
		"module_id":      id,
		"document_count": len(in.DocumentIDs),
	})
}
