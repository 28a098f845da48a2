// Package login provides the JSON login endpoint.
package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
	"github.com/CompliTrack/CompliTrack/internal/web/session"
)

const (
	// Path is the path to the login endpoint.
	Path = handler.APIPath + "/login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg           *config.Config
	db            *gorm.DB
	localProvider *auth.LocalProvider
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New("app, cfg or db is nil")
	}

	s.db = db
	s.cfg = cfg
	s.localProvider = auth.NewLocalProvider(db)

	app.Post(Path, s.Post)

	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Post handles the login request. On success a session is created and the
// session cookie is set.
func (s *Service) Post(c *fiber.Ctx) error {
	in := new(loginRequest)

	if err := c.BodyParser(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidRequestBody.Error(),
		})
	}

	if in.Username == "" || in.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and password are required",
		})
	}

	user, err := s.localProvider.Authenticate(in.Username, in.Password)
	if err != nil {
		// A disabled account and a bad password look the same to the
		// caller.
		log.Warn().Str("username", in.Username).Err(err).Msg("login failed")

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": ErrInvalidCredentials.Error(),
		})
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	userSession := &session.Data{
		User: *user,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return c.JSON(fiber.Map{
		"message":  "login successful",
		"user_id":  user.ID,
		"username": user.Username,
		"name":     user.DisplayName(),
	})
}
