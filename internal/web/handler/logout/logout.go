// Package logout provides the JSON logout endpoint.
package logout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
	"github.com/CompliTrack/CompliTrack/internal/web/session"
)

const (
	// Path is the path to the logout endpoint.
	Path = handler.APIPath + "/logout"
)

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New("app, cfg or db is nil")
	}

	s.db = db
	s.cfg = cfg

	app.Post(Path, s.Post)

	return nil
}

// Post destroys the session and clears the session cookie.
func (s *Service) Post(c *fiber.Ctx) error {
	if sessionID := c.Cookies("session"); sessionID != "" {
		if err := session.Destroy(sessionID); err != nil {
			log.Warn().Err(err).Msg("failed to destroy session")
		}
	}

	c.ClearCookie("session")

	return c.JSON(fiber.Map{
		"message": "logged out",
	})
}
