// Package dashboard provides the compliance dashboard endpoint.
package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/db/models"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
)

const (
	// Path is the path to the dashboard endpoint.
	Path = handler.APIPath + "/dashboard"
)

// Data is the dashboard summary payload.
type Data struct {
	ActiveUsers          int64 `json:"active_users"`
	ActiveModules        int64 `json:"active_modules"`
	ActiveDocuments      int64 `json:"active_documents"`
	OpenAssignments      int64 `json:"open_assignments"`
	CompletedAssignments int64 `json:"completed_assignments"`
	OverdueAssignments   int64 `json:"overdue_assignments"`
	OpenIssues           int64 `json:"open_issues"`
	UpcomingAudits       int64 `json:"upcoming_audits"`
}

// overdueAfter is how long an assignment may stay open before it counts as
// overdue on the dashboard.
const overdueAfter = 30 * 24 * time.Hour

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg

	app.Get(Path,
		auth.RequirePermission(authService, auth.PermDashboardView),
		s.Get,
	)
}

// Get returns the compliance summary counts.
func (s *Service) Get(c *fiber.Ctx) error {
	var data Data

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&data.ActiveUsers, s.db.Model(&models.User{}).Where("active = ?", true)},
		{&data.ActiveModules, s.db.Model(&models.TrainingModule{}).Where("active = ?", true)},
		{&data.ActiveDocuments, s.db.Model(&models.Document{}).Where("active = ?", true)},
		{&data.OpenAssignments, s.db.Model(&models.UserAssignment{}).Where("completed_at IS NULL")},
		{&data.CompletedAssignments, s.db.Model(&models.UserAssignment{}).Where("completed_at IS NOT NULL")},
		{&data.OverdueAssignments, s.db.Model(&models.UserAssignment{}).
			Where("completed_at IS NULL AND assigned_at < ?", time.Now().UTC().Add(-overdueAfter))},
		{&data.OpenIssues, s.db.Model(&models.Issue{}).Where("resolved_at IS NULL")},
		{&data.UpcomingAudits, s.db.Model(&models.Audit{}).
			Where("status <> ? AND scheduled_for >= ?", models.AuditStatusClosed, time.Now().UTC())},
	}

	for _, count := range counts {
		if err := count.query.Count(count.dest).Error; err != nil {
			log.Error().Err(err).Msg("dashboard count failed")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load dashboard",
			})
		}
	}

	return c.JSON(data)
}
