// Package rolechange provides the endpoint that moves a user onto a new role
// profile and reconciles their training assignments.
package rolechange

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/training"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
)

const (
	// Path is the path to the role change endpoint.
	Path = handler.APIPath + "/change-user-role-assignments"
)

// Service is the role change handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	training *training.Service
}

// Handler is the role change handler.
var Handler = Service{}

// Init initializes the role change handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.training = training.NewService(db)

	app.Post(Path,
		auth.RequirePermission(authService, auth.PermTrainingAssign),
		s.Post,
	)
}

type roleChangeRequest struct {
	UserID    uint64 `json:"user_id"`
	NewRoleID uint   `json:"new_role_id"`
}

// Post handles the role change request.
func (s *Service) Post(c *fiber.Ctx) error {
	in := new(roleChangeRequest)

	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if in.UserID == 0 || in.NewRoleID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and new_role_id are required",
		})
	}

	result, err := s.training.ReconcileRoleChange(in.UserID, in.NewRoleID)
	if err != nil {
		switch {
		case errors.Is(err, training.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		case errors.Is(err, training.ErrRoleNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "role not found",
			})
		default:
			log.Error().Err(err).Uint64("user_id", in.UserID).Uint("new_role_id", in.NewRoleID).
				Msg("role change reconciliation failed")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to change user role",
				"details": err.Error(),
			})
		}
	}

	log.Info().
		Uint64("user_id", result.UserID).
		Uint("new_role_id", result.NewRoleID).
		Int("assignments_removed", result.AssignmentsRemoved).
		Int("assignments_added", result.AssignmentsAdded).
		Int("completions_restored", result.CompletionsRestored).
		Msg("user role changed")

	return c.JSON(fiber.Map{
		"message":              "user role changed",
		"user_id":              result.UserID,
		"user_name":            result.UserName,
		"old_role_id":          result.OldRoleID,
		"new_role_id":          result.NewRoleID,
		"assignments_removed":  result.AssignmentsRemoved,
		"assignments_added":    result.AssignmentsAdded,
		"completions_restored": result.CompletionsRestored,
	})
}
