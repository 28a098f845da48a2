// Package completion provides the endpoint that records training session
// outcomes against a user's live assignments.
package completion

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/db/models"
	"github.com/CompliTrack/CompliTrack/internal/training"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
)

const (
	// Path is the path to the completion recording endpoint.
	Path = handler.APIPath + "/record-training-completion"
)

// Service is the completion handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	training *training.Service
}

// Handler is the completion handler.
var Handler = Service{}

// Init initializes the completion handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.training = training.NewService(db)

	app.Post(Path,
		auth.RequirePermission(authService, auth.PermTrainingRecord),
		s.Post,
	)
}

type completionRequest struct {
	AuthID            string   `json:"auth_id"`
	ItemID            uint64   `json:"item_id"`
	ItemType          string   `json:"item_type"`
	CompletedDate     string   `json:"completed_date"`
	Outcome           string   `json:"training_outcome"`
	LinkedDocumentIDs []uint64 `json:"linked_document_ids"`
}

// Post handles the completion recording request.
func (s *Service) Post(c *fiber.Ctx) error {
	in := new(completionRequest)

	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := s.training.RecordCompletion(training.CompletionInput{
		AuthID:            in.AuthID,
		ItemID:            in.ItemID,
		ItemType:          models.ItemType(in.ItemType),
		CompletedDate:     in.CompletedDate,
		Outcome:           models.TrainingOutcome(in.Outcome),
		LinkedDocumentIDs: in.LinkedDocumentIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, training.ErrAuthIDRequired),
			errors.Is(err, training.ErrItemIDRequired),
			errors.Is(err, training.ErrInvalidItemType),
			errors.Is(err, training.ErrInvalidOutcome),
			errors.Is(err, training.ErrInvalidDate):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, training.ErrAssignmentNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "assignment not found",
			})
		default:
			log.Error().Err(err).Str("auth_id", in.AuthID).Uint64("item_id", in.ItemID).
				Msg("failed to record training completion")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to record training completion",
				"details": err.Error(),
			})
		}
	}

	log.Info().
		Str("auth_id", result.AuthID).
		Uint64("item_id", result.ItemID).
		Str("item_type", string(result.ItemType)).
		Str("outcome", string(result.Outcome)).
		Int("documents_completed", result.DocumentsCompleted).
		Msg("training completion recorded")

	return c.JSON(fiber.Map{
		"message":             "training completion recorded",
		"auth_id":             result.AuthID,
		"item_id":             result.ItemID,
		"item_type":           result.ItemType,
		"topic":               result.Topic,
		"outcome":             result.Outcome,
		"completed_at":        result.CompletedAt,
		"follow_up_due":       result.FollowUpDue,
		"refresh_due":         result.RefreshDue,
		"documents_completed": result.DocumentsCompleted,
	})
}
