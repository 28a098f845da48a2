package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/db/models"
)

// LocalProvider handles local database authentication.
type LocalProvider struct {
	db *gorm.DB
}

const whereID = "id = ?"

// NewLocalProvider creates a new local authentication provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{
		db: db,
	}
}

// Authenticate authenticates a user against the local database.
func (p *LocalProvider) Authenticate(username, password string) (*models.User, error) {
	var user models.User

	err := p.db.Where("username = ?", username).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	if !user.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	return &user, nil
}

// CreateUser creates a new local user. The user is issued a stable auth ID
// that outlives role changes and ties assignments and completion history
// together.
func (p *LocalProvider) CreateUser(
	username, email, password, firstName, lastName string,
	roleID *uint,
) (*models.User, error) {
	var existingUser models.User

	err := p.db.Where("username = ? OR email = ?", username, email).First(&existingUser).Error
	if err == nil {
		return nil, ErrUserNameOrEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashedPassword := models.HashPassword(password)

	user := models.User{
		AuthID:    uuid.NewString(),
		Active:    true,
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		FirstName: firstName,
		LastName:  lastName,
		RoleID:    roleID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// UpdateUser updates an existing local user's profile fields. Role changes go
// through the training reconciler, not through here.
func (p *LocalProvider) UpdateUser(userID uint64, email, firstName, lastName string) error {
	updates := map[string]interface{}{
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
		"updated_at": time.Now(),
	}

	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Updates(updates).Error
}

// ChangePassword changes a user's password.
func (p *LocalProvider) ChangePassword(userID uint64, oldPassword, newPassword string) error {
	var user models.User
	if err := p.db.Where(whereID, userID).
		First(&user).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	hashedPassword := models.HashPassword(newPassword)

	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("password", hashedPassword).Error
}

// ResetPassword resets a user's password (admin function).
func (p *LocalProvider) ResetPassword(userID uint64, newPassword string) error {
	hashedPassword := models.HashPassword(newPassword)

	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("password", hashedPassword).Error
}

// ActivateUser activates a user account.
func (p *LocalProvider) ActivateUser(userID uint64) error {
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("active", true).Error
}

// DeactivateUser deactivates a user account.
func (p *LocalProvider) DeactivateUser(userID uint64) error {
	return p.db.Model(&models.User{}).
		Where(whereID, userID).
		Update("active", false).Error
}

// DeleteUser soft deletes a user.
func (p *LocalProvider) DeleteUser(userID uint64) error {
	return p.db.Delete(&models.User{}, userID).Error
}

// GetUserByID retrieves a user by ID.
func (p *LocalProvider) GetUserByID(userID uint64) (*models.User, error) {
	var user models.User
	if err := p.db.Preload("Role").First(&user, userID).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (p *LocalProvider) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := p.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// ListUsers lists users with optional filters and pagination.
func (p *LocalProvider) ListUsers(
	search string,
	active *bool,
	limit, offset int,
) ([]models.User, int64, error) {
	var users []models.User

	var total int64

	query := p.db.Model(&models.User{}).Preload("Role")

	if search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?",
			like, like, like, like,
		)
	}

	if active != nil {
		query = query.Where("active = ?", *active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Limit(limit).Offset(offset).Order("username").Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
