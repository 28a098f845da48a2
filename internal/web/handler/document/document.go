// Package document provides handlers for managing controlled documents.
package document

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
	// Path is the base path for document management.
	Path = handler.APIPath + "/documents"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25
)

// Service provides CRUD operations for controlled documents.
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
		auth.RequireAnyPermission(authService, auth.PermDocumentRead, auth.PermDocumentManage),
		s.List,
	)
	app.Get(Path+"/:id",
		auth.RequireAnyPermission(authService, auth.PermDocumentRead, auth.PermDocumentManage),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermDocumentManage),
		s.Create,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, auth.PermDocumentManage),
		s.Update,
	)
	app.Delete(Path+"/:id",
		auth.RequirePermission(authService, auth.PermDocumentManage),
		s.Retire,
	)
}

// List returns documents with pagination and search.
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
		documents []models.Document
		total     int64
		tx        = s.db.Model(&models.Document{})
	)

	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("title LIKE ? OR reference LIKE ?", like, like)
	}

	if c.Query("active") != "" {
		tx = tx.Where("active = ?", c.QueryBool("active"))
	}

	if err := tx.Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("count documents failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load documents",
		})
	}

	offset := (page - 1) * pageSize
	if err := tx.Order("reference").Limit(pageSize).Offset(offset).
		Find(&documents).Error; err != nil {
		log.Error().Err(err).Msg("query documents failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents":   documents,
		"page":        page,
		"page_size":   pageSize,
		"total_items": total,
	})
}

// Get returns a single document.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	var document models.Document
	if err := s.db.First(&document, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load document",
		})
	}

	return c.JSON(document)
}

type documentRequest struct {
	Title     string `json:"title"     validate:"required,min=2,max=255"`
	Reference string `json:"reference" validate:"required,min=2,max=50"`
}

// Create creates a new controlled document at version 1.
func (s *Service) Create(c *fiber.Ctx) error {
	var in documentRequest

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

	document := models.Document{
		Title:     in.Title,
		Reference: in.Reference,
		Version:   1,
		Active:    true,
	}

	if err := s.db.Create(&document).Error; err != nil {
		log.Error().Err(err).Str("reference", in.Reference).Msg("failed to create document")

		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "failed to create document, reference may already exist",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(document)
}

type documentUpdateRequest struct {
	Title        string `json:"title" validate:"required,min=2,max=255"`
	BumpVersion  bool   `json:"bump_version"`
	ReissueNotes string `json:"reissue_notes" validate:"max=500"`
}

// Update updates a document. Bumping the version marks a reissue.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	var in documentUpdateRequest

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

	var document models.Document
	if err := s.db.First(&document, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load document",
		})
	}

	document.Title = in.Title
	if in.BumpVersion {
		document.Version++
	}

	if err := s.db.Save(&document).Error; err != nil {
		log.Error().Err(err).Uint64("document_id", id).Msg("failed to update document")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update document",
		})
	}

	return c.JSON(document)
}

// Retire marks a document withdrawn. Documents are never hard deleted so
// historical training records keep their target.
func (s *Service) Retire(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid document id",
		})
	}

	res := s.db.Model(&models.Document{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		log.Error().Err(res.Error).Uint64("document_id", id).Msg("failed to retire document")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to retire document",
		})
	}

	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "document retired",
		"id":      id,
	})
}
