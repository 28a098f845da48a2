// Package audit provides handlers for scheduling audits and raising issues
// from audit findings.
package audit

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
	// Path is the base path for audit management.
	Path = handler.APIPath + "/audits"

	// IssuesPath is the base path for issue management.
	IssuesPath = handler.APIPath + "/issues"
)

// Service provides CRUD operations for audits and issues.
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
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.List,
	)
	app.Get(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.Create,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.Update,
	)
	app.Post(Path+"/:id/issues",
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.RaiseIssue,
	)
	app.Get(IssuesPath,
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.ListIssues,
	)
	app.Put(IssuesPath+"/:id/resolve",
		auth.RequirePermission(authService, auth.PermAuditManage),
		s.ResolveIssue,
	)
}

func parseID(c *fiber.Ctx) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}

	return id, true
}

// List returns audits, optionally filtered by status.
func (s *Service) List(c *fiber.Ctx) error {
	tx := s.db.Model(&models.Audit{})

	if status := c.Query("status"); status != "" {
		if !models.AuditStatus(status).Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid audit status",
			})
		}

		tx = tx.Where("status = ?", status)
	}

	var audits []models.Audit
	if err := tx.Order("scheduled_for").Find(&audits).Error; err != nil {
		log.Error().Err(err).Msg("query audits failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load audits",
		})
	}

	return c.JSON(fiber.Map{
		"audits": audits,
	})
}

// Get returns a single audit with its issues.
func (s *Service) Get(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid audit id",
		})
	}

	var audit models.Audit
	if err := s.db.First(&audit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "audit not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load audit",
		})
	}

	var issues []models.Issue
	if err := s.db.Where("audit_id = ?", id).
		Order("created_at").Find(&issues).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load audit issues",
		})
	}

	return c.JSON(fiber.Map{
		"audit":  audit,
		"issues": issues,
	})
}

type auditRequest struct {
	Title        string    `json:"title"         validate:"required,min=2,max=255"`
	Standard     string    `json:"standard"      validate:"max=100"`
	Status       string    `json:"status"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Create schedules a new audit.
func (s *Service) Create(c *fiber.Ctx) error {
	var in auditRequest

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

	status := models.AuditStatus(in.Status)
	if in.Status == "" {
		status = models.AuditStatusPlanned
	}

	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid audit status",
		})
	}

	audit := models.Audit{
		Title:        in.Title,
		Standard:     in.Standard,
		Status:       status,
		ScheduledFor: in.ScheduledFor,
	}

	if err := s.db.Create(&audit).Error; err != nil {
		log.Error().Err(err).Str("title", in.Title).Msg("failed to create audit")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create audit",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(audit)
}

// Update updates an audit.
func (s *Service) Update(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid audit id",
		})
	}

	var in auditRequest

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

	status := models.AuditStatus(in.Status)
	if in.Status == "" {
		status = models.AuditStatusPlanned
	}

	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid audit status",
		})
	}

	var audit models.Audit
	if err := s.db.First(&audit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "audit not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load audit",
		})
	}

	// An audit with open issues can not be closed.
	if status == models.AuditStatusClosed && audit.Status != models.AuditStatusClosed {
		var openIssues int64
		if err := s.db.Model(&models.Issue{}).
			Where("audit_id = ? AND resolved_at IS NULL", id).
			Count(&openIssues).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to check open issues",
			})
		}

		if openIssues > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":       "audit has open issues",
				"open_issues": openIssues,
			})
		}
	}

	audit.Title = in.Title
	audit.Standard = in.Standard
	audit.Status = status
	audit.ScheduledFor = in.ScheduledFor

	if err := s.db.Save(&audit).Error; err != nil {
		log.Error().Err(err).Uint64("audit_id", id).Msg("failed to update audit")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update audit",
		})
	}

	return c.JSON(audit)
}

type issueRequest struct {
	Title  string `json:"title"  validate:"required,min=2,max=255"`
	Detail string `json:"detail" validate:"max=2000"`
}

// RaiseIssue raises an issue from an audit finding.
func (s *Service) RaiseIssue(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid audit id",
		})
	}

	var in issueRequest

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

	if err := s.db.First(&models.Audit{}, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "audit not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load audit",
		})
	}

	issue := models.Issue{
		Title:   in.Title,
		Detail:  in.Detail,
		AuditID: &id,
	}

	if err := s.db.Create(&issue).Error; err != nil {
		log.Error().Err(err).Uint64("audit_id", id).Msg("failed to raise issue")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to raise issue",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(issue)
}

// ListIssues returns issues, open first.
func (s *Service) ListIssues(c *fiber.Ctx) error {
	tx := s.db.Model(&models.Issue{})

	if c.Query("open") != "" && c.QueryBool("open") {
		tx = tx.Where("resolved_at IS NULL")
	}

	var issues []models.Issue
	if err := tx.Order("resolved_at IS NOT NULL, created_at").Find(&issues).Error; err != nil {
		log.Error().Err(err).Msg("query issues failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load issues",
		})
	}

	return c.JSON(fiber.Map{
		"issues": issues,
	})
}

// ResolveIssue marks an issue resolved.
func (s *Service) ResolveIssue(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid issue id",
		})
	}

	now := time.Now().UTC()

	res := s.db.Model(&models.Issue{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Update("resolved_at", now)
	if res.Error != nil {
		log.Error().Err(res.Error).Uint64("issue_id", id).Msg("failed to resolve issue")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve issue",
		})
	}

	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "issue not found or already resolved",
		})
	}

	return c.JSON(fiber.Map{
		"message":     "issue resolved",
		"id":          id,
		"resolved_at": now,
	})
}
