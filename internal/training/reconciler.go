// Package training implements the assignment reconciler and the training
// completion recorder. The reconciler keeps a user's live training
// assignments in sync with their role profile's template when the role
// changes, without ever discarding completed work; the recorder marks
// assignments complete and maintains the per-day training log.
package training

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CompliTrack/CompliTrack/internal/db/models"
)

// Service provides assignment reconciliation and completion recording.
type Service struct {
	db *gorm.DB
}

// NewService creates a new training service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ReconcileResult summarizes a role change.
type ReconcileResult struct {
	UserID              uint64
	UserName            string
	OldRoleID           *uint
	NewRoleID           uint
	AssignmentsRemoved  int
	AssignmentsAdded    int
	CompletionsRestored int
}

// ReconcileRoleChange moves the user onto the given role and reconciles their
// live assignments against the role's training template.
//
// Completed assignments are never deleted: only open assignments that the new
// role does not require are removed. Items required by the new role that the
// user does not hold yet are created; when the completion ledger holds a
// prior completion for such an item, its original completion date is restored
// instead of forcing re-training.
//
// The role update and the assignment changes run in one transaction, so a
// failure can not leave role_id and assignments out of sync. Mirroring
// completions into the ledger and writing the role change log are
// best-effort: failures there are logged and do not abort the change.
func (s *Service) ReconcileRoleChange(userID uint64, newRoleID uint) (*ReconcileResult, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	if userID == 0 {
		return nil, ErrUserIDRequired
	}

	if newRoleID == 0 {
		return nil, ErrRoleIDRequired
	}

	var role models.Role
	if err := s.db.First(&role, newRoleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}

		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	result := &ReconcileResult{UserID: userID, NewRoleID: newRoleID}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}

			return fmt.Errorf("failed to load user: %w", err)
		}

		result.UserName = user.DisplayName()
		result.OldRoleID = user.RoleID

		// Mirror current completions into the ledger before anything is
		// touched. Rows already in the ledger are untouched, so a failure
		// here only means the newest batch was not freshly mirrored.
		if err := s.mirrorCompletions(tx, &user); err != nil {
			log.Warn().Err(err).Uint64("user_id", userID).
				Msg("failed to mirror completions into ledger")
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("role_id", newRoleID).Error; err != nil {
			return fmt.Errorf("failed to update user role: %w", err)
		}

		target, err := loadTargetSet(tx, newRoleID)
		if err != nil {
			return err
		}

		removed, err := removeObsoleteOpenAssignments(tx, user.AuthID, target)
		if err != nil {
			return err
		}

		result.AssignmentsRemoved = removed

		added, restored, err := addMissingAssignments(tx, user.AuthID, target)
		if err != nil {
			return err
		}

		result.AssignmentsAdded = added
		result.CompletionsRestored = restored

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Audit log is best-effort: the role change has already committed.
	logEntry := models.UserRoleChangeLog{
		UserID:             userID,
		OldRoleID:          result.OldRoleID,
		NewRoleID:          newRoleID,
		AssignmentsRemoved: result.AssignmentsRemoved,
		AssignmentsAdded:   result.AssignmentsAdded,
		ChangedAt:          time.Now().UTC(),
	}
	if err := s.db.Create(&logEntry).Error; err != nil {
		log.Warn().Err(err).Uint64("user_id", userID).Uint("new_role_id", newRoleID).
			Msg("failed to write role change log")
	}

	return result, nil
}

// mirrorCompletions copies the user's completed assignments into the
// completion ledger via an idempotent upsert.
func (s *Service) mirrorCompletions(tx *gorm.DB, user *models.User) error {
	var completed []models.UserAssignment
	if err := tx.Where("auth_id = ? AND completed_at IS NOT NULL", user.AuthID).
		Find(&completed).Error; err != nil {
		return fmt.Errorf("failed to load completed assignments: %w", err)
	}

	for _, a := range completed {
		ledger := models.UserTrainingCompletion{
			AuthID:            a.AuthID,
			ItemID:            a.ItemID,
			ItemType:          a.ItemType,
			CompletedAt:       *a.CompletedAt,
			CompletedByRoleID: user.RoleID,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "auth_id"}, {Name: "item_id"}, {Name: "item_type"}},
			DoNothing: true,
		}).Create(&ledger).Error; err != nil {
			return fmt.Errorf("failed to upsert completion ledger row: %w", err)
		}
	}

	return nil
}

// loadTargetSet loads the role's training template deduplicated by item key.
// A role template may contain redundant rows for the same item.
func loadTargetSet(tx *gorm.DB, roleID uint) (map[models.ItemKey]struct{}, error) {
	var template []models.RoleAssignment
	if err := tx.Where("role_id = ?", roleID).Find(&template).Error; err != nil {
		return nil, fmt.Errorf("failed to load role template: %w", err)
	}

	target := make(map[models.ItemKey]struct{}, len(template))
	for _, row := range template {
		target[row.Key()] = struct{}{}
	}

	return target, nil
}

// removeObsoleteOpenAssignments deletes the user's open assignments whose
// item key the new role does not require. Completed rows are never loaded
// for deletion; they are categorically exempt.
func removeObsoleteOpenAssignments(
	tx *gorm.DB,
	authID string,
	target map[models.ItemKey]struct{},
) (int, error) {
	var open []models.UserAssignment
	if err := tx.Where("auth_id = ? AND completed_at IS NULL", authID).
		Find(&open).Error; err != nil {
		return 0, fmt.Errorf("failed to load open assignments: %w", err)
	}

	var obsolete []uint64

	for _, a := range open {
		if _, required := target[a.Key()]; !required {
			obsolete = append(obsolete, a.ID)
		}
	}

	if len(obsolete) == 0 {
		return 0, nil
	}

	if err := tx.Delete(&models.UserAssignment{}, obsolete).Error; err != nil {
		return 0, fmt.Errorf("failed to delete obsolete assignments: %w", err)
	}

	return len(obsolete), nil
}

// addMissingAssignments creates an assignment for every target item the user
// does not hold, restoring the original completion date from the ledger when
// the item was completed under a former role.
func addMissingAssignments(
	tx *gorm.DB,
	authID string,
	target map[models.ItemKey]struct{},
) (added, restored int, err error) {
	// Reload everything the user still holds, completed and open, so
	// existing rows are not duplicated.
	var current []models.UserAssignment
	if err = tx.Where("auth_id = ?", authID).Find(&current).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to reload assignments: %w", err)
	}

	existing := make(map[models.ItemKey]struct{}, len(current))
	for _, a := range current {
		existing[a.Key()] = struct{}{}
	}

	var history []models.UserTrainingCompletion
	if err = tx.Where("auth_id = ?", authID).Find(&history).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to load completion history: %w", err)
	}

	// Historical dates apply only to items without a live row; a live row
	// already carries its own completion state.
	restorable := make(map[models.ItemKey]time.Time, len(history))

	for _, h := range history {
		if _, has := existing[h.Key()]; !has {
			restorable[h.Key()] = h.CompletedAt
		}
	}

	now := time.Now().UTC()

	for key := range target {
		if _, has := existing[key]; has {
			continue
		}

		assignment := models.UserAssignment{
			AuthID:     authID,
			ItemID:     key.ID,
			ItemType:   key.Type,
			AssignedAt: now,
		}

		if completedAt, has := restorable[key]; has {
			restoredAt := completedAt
			assignment.CompletedAt = &restoredAt
			assignment.TrainingOutcome = models.OutcomeCompleted
			restored++
		}

		if err = tx.Create(&assignment).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to create assignment: %w", err)
		}

		added++
	}

	return added, restored, nil
}
