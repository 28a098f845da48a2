// Package user provides handlers for managing users (CRUD) in the admin area.
package user

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
	"github.com/CompliTrack/CompliTrack/internal/training"
	"github.com/CompliTrack/CompliTrack/internal/web/handler"
)

const (
	// Path is the base path for user management.
	Path = handler.APIPath + "/admin/users"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25
)

// Service provides CRUD operations for users.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
	provider  *auth.LocalProvider
	training  *training.Service
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
	s.provider = auth.NewLocalProvider(db)
	s.training = training.NewService(db)

	app.Get(Path,
		auth.RequirePermission(authService, auth.PermAdminUsers),
		s.List,
	)
	app.Get(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAdminUsers),
		s.Get,
	)
	app.Post(Path,
		auth.RequirePermission(authService, auth.PermAdminUsers),
		s.Create,
	)
	app.Put(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAdminUsers),
		s.Update,
	)
	app.Delete(Path+"/:id",
		auth.RequirePermission(authService, auth.PermAdminUsers),
		s.Delete,
	)
}

// userResponse is the JSON shape returned for a user. The password hash never
// leaves the server.
type userResponse struct {
	ID        uint64  `json:"id"`
	AuthID    string  `json:"auth_id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Active    bool    `json:"active"`
	RoleID    *uint   `json:"role_id"`
	RoleName  *string `json:"role_name"`
}

func toResponse(u *models.User) userResponse {
	out := userResponse{
		ID:        u.ID,
		AuthID:    u.AuthID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Active:    u.Active,
		RoleID:    u.RoleID,
	}

	if u.Role != nil {
		out.RoleName = &u.Role.Name
	}

	return out
}

// List returns users with pagination and search.
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

	var active *bool

	if c.Query("active") != "" {
		v := c.QueryBool("active")
		active = &v
	}

	offset := (page - 1) * pageSize

	users, total, err := s.provider.ListUsers(search, active, pageSize, offset)
	if err != nil {
		log.Error().Err(err).Msg("query users failed")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load users",
		})
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toResponse(&users[i]))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		totalPages = 1
	}

	return c.JSON(fiber.Map{
		"users":       out,
		"page":        page,
		"page_size":   pageSize,
		"total_items": total,
		"total_pages": totalPages,
	})
}

// Get returns a single user.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	user, err := s.provider.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}

		log.Error().Err(err).Uint64("user_id", id).Msg("failed to load user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load user",
		})
	}

	return c.JSON(toResponse(user))
}

type createRequest struct {
	Username  string `json:"username"   validate:"required,min=3,max=100"`
	Email     string `json:"email"      validate:"required,email,max=255"`
	Password  string `json:"password"   validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
	RoleID    *uint  `json:"role_id"`
}

// Create creates a new user. When a role is given, the role's training
// template is applied to the new user in the same request.
func (s *Service) Create(c *fiber.Ctx) error {
	var in createRequest

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

	user, err := s.provider.CreateUser(
		in.Username, in.Email, in.Password, in.FirstName, in.LastName, nil,
	)
	if err != nil {
		if errors.Is(err, auth.ErrUserNameOrEmailExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		log.Error().Err(err).Str("username", in.Username).Msg("failed to create user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create user",
		})
	}

	// The reconciler assigns the role so the new user picks up the
	// role's training template immediately.
	if in.RoleID != nil && *in.RoleID != 0 {
		if _, err := s.training.ReconcileRoleChange(user.ID, *in.RoleID); err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Uint("role_id", *in.RoleID).
				Msg("failed to apply role template to new user")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "user created but role assignment failed",
				"user_id": user.ID,
			})
		}

		user.RoleID = in.RoleID
	}

	return c.Status(fiber.StatusCreated).JSON(toResponse(user))
}

type updateRequest struct {
	Email     string `json:"email"      validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
	Active    *bool  `json:"active"`
	Password  string `json:"password"   validate:"omitempty,min=8"`
	RoleID    *uint  `json:"role_id"`
}

// Update updates a user's profile. A role change runs through the training
// reconciler so assignments stay in sync.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	var in updateRequest

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

	user, err := s.provider.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load user",
		})
	}

	if err := s.provider.UpdateUser(id, in.Email, in.FirstName, in.LastName); err != nil {
		log.Error().Err(err).Uint64("user_id", id).Msg("failed to update user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update user",
		})
	}

	if in.Password != "" {
		if err := s.provider.ResetPassword(id, in.Password); err != nil {
			log.Error().Err(err).Uint64("user_id", id).Msg("failed to reset password")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to reset password",
			})
		}
	}

	if in.Active != nil {
		if *in.Active {
			err = s.provider.ActivateUser(id)
		} else {
			err = s.provider.DeactivateUser(id)
		}

		if err != nil {
			log.Error().Err(err).Uint64("user_id", id).Msg("failed to change active state")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to change active state",
			})
		}
	}

	roleChanged := in.RoleID != nil && *in.RoleID != 0 &&
		(user.RoleID == nil || *user.RoleID != *in.RoleID)

	if roleChanged {
		result, err := s.training.ReconcileRoleChange(id, *in.RoleID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", id).Uint("role_id", *in.RoleID).
				Msg("role change reconciliation failed")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to change user role",
				"details": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message":              "user updated",
			"user_id":              id,
			"assignments_removed":  result.AssignmentsRemoved,
			"assignments_added":    result.AssignmentsAdded,
			"completions_restored": result.CompletionsRestored,
		})
	}

	return c.JSON(fiber.Map{
		"message": "user updated",
		"user_id": id,
	})
}

// Delete soft deletes a user. Admin users and the caller's own account are
// protected.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	user, err := s.provider.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load user",
		})
	}

	if user.Role != nil && user.Role.Name == "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "cannot delete admin users",
		})
	}

	if current, ok := auth.CurrentUser(c); ok && current.User.ID == id {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "you cannot delete your own account",
		})
	}

	if err := s.provider.DeleteUser(id); err != nil {
		log.Error().Err(err).Uint64("user_id", id).Msg("failed to delete user")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete user",
		})
	}

	return c.JSON(fiber.Map{
		"message": "user deleted",
		"user_id": id,
	})
}
