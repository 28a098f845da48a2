package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/CompliTrack/CompliTrack/internal/web/handler"
	"github.com/CompliTrack/CompliTrack/internal/web/handler/login"
	"github.com/CompliTrack/CompliTrack/internal/web/session"
)

// AuthMiddleware is a Fiber middleware that checks for user authentication on
// API routes. The login endpoint, liveness probe and metrics are exempt.
func AuthMiddleware(c *fiber.Ctx) error {
	originalURL := strings.ToLower(c.OriginalURL())

	if !strings.HasPrefix(originalURL, strings.ToLower(handler.APIPath)) {
		return c.Next()
	}

	if strings.HasPrefix(originalURL, strings.ToLower(login.Path)) {
		return c.Next()
	}

	// get session cookie
	loginCookie := c.Cookies("session")

	if loginCookie == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	// check session validity
	sessData := new(session.Data)
	_ = sessData.Read(loginCookie)

	if sessData.User.ID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	return c.Next()
}
