package training

import "errors"

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")

	// ErrUserIDRequired is returned when no user ID was supplied.
	ErrUserIDRequired = errors.New("user id is required")

	// ErrRoleIDRequired is returned when no role ID was supplied.
	ErrRoleIDRequired = errors.New("role id is required")

	// ErrAuthIDRequired is returned when no auth ID was supplied.
	ErrAuthIDRequired = errors.New("auth id is required")

	// ErrItemIDRequired is returned when no item ID was supplied.
	ErrItemIDRequired = errors.New("item id is required")

	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoleNotFound is returned when the target role does not exist.
	ErrRoleNotFound = errors.New("role not found")

	// ErrAssignmentNotFound is returned when the user has no assignment for the item.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrInvalidItemType is returned when the item type is not module or document.
	ErrInvalidItemType = errors.New("item type must be module or document")

	// ErrInvalidOutcome is returned when the training outcome is unknown.
	ErrInvalidOutcome = errors.New("training outcome must be completed, needs_improvement or failed")

	// ErrInvalidDate is returned when the completed date cannot be parsed.
	ErrInvalidDate = errors.New("completed date must be YYYY-MM-DD or RFC3339")
)
