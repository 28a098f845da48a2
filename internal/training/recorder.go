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

const dayFormat = "2006-01-02"

// CompletionInput carries one training session to record.
type CompletionInput struct {
	AuthID            string
	ItemID            uint64
	ItemType          models.ItemType
	CompletedDate     string                 // optional; YYYY-MM-DD or RFC3339, empty means now
	Outcome           models.TrainingOutcome // optional; defaults to completed
	LinkedDocumentIDs []uint64               // optional; defaults to the module's linked documents
}

// CompletionResult summarizes a recorded training session.
type CompletionResult struct {
	AuthID             string
	ItemID             uint64
	ItemType           models.ItemType
	Topic              string
	Outcome            models.TrainingOutcome
	CompletedAt        time.Time
	FollowUpDue        *time.Time
	RefreshDue         *time.Time
	DocumentsCompleted int
}

// RecordCompletion records the result of a training session against the
// user's live assignment.
//
// Only a completed outcome closes the assignment; needs_improvement and
// failed leave it open for a retake. Completing a module cascades completion
// to its linked documents' assignments and computes the follow-up and
// refresher due dates from the module's configured periods. Every outcome is
// written to the per-day training log, which is upserted so recording the
// same session twice on one day does not duplicate rows.
func (s *Service) RecordCompletion(input CompletionInput) (*CompletionResult, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	if input.AuthID == "" {
		return nil, ErrAuthIDRequired
	}

	if input.ItemID == 0 {
		return nil, ErrItemIDRequired
	}

	if !input.ItemType.Valid() {
		return nil, ErrInvalidItemType
	}

	outcome := input.Outcome
	if outcome == "" {
		outcome = models.OutcomeCompleted
	}

	if !outcome.Valid() {
		return nil, ErrInvalidOutcome
	}

	completedAt, err := parseCompletedDate(input.CompletedDate)
	if err != nil {
		return nil, err
	}

	var assignment models.UserAssignment
	err = s.db.Where("auth_id = ? AND item_id = ? AND item_type = ?",
		input.AuthID, input.ItemID, input.ItemType).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}

		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	result := &CompletionResult{
		AuthID:      input.AuthID,
		ItemID:      input.ItemID,
		ItemType:    input.ItemType,
		Outcome:     outcome,
		CompletedAt: completedAt,
	}

	result.Topic = s.itemTopic(input.ItemType, input.ItemID)

	if outcome == models.OutcomeCompleted {
		assignment.CompletedAt = &completedAt
		assignment.TrainingOutcome = outcome

		if err = s.db.Save(&assignment).Error; err != nil {
			return nil, fmt.Errorf("failed to update assignment: %w", err)
		}

		if input.ItemType == models.ItemTypeModule {
			s.applyModuleSchedule(input.ItemID, completedAt, result)
			result.DocumentsCompleted = s.cascadeLinkedDocuments(input, completedAt)
		}

		// Keep the ledger current without waiting for a role change.
		if err := s.mirrorCompletion(&assignment); err != nil {
			log.Warn().Err(err).Str("auth_id", input.AuthID).
				Msg("failed to mirror completion into ledger")
		}
	} else {
		// Outcome is recorded but completed_at stays null so the
		// assignment remains open for a retake.
		err = s.db.Model(&models.UserAssignment{}).
			Where("id = ?", assignment.ID).
			Update("training_outcome", outcome).Error
		if err != nil {
			return nil, fmt.Errorf("failed to record outcome: %w", err)
		}
	}

	if err := s.upsertTrainingLog(input, result.Topic, outcome, completedAt); err != nil {
		log.Warn().Err(err).Str("auth_id", input.AuthID).Str("topic", result.Topic).
			Msg("failed to upsert training log")
	}

	return result, nil
}

// parseCompletedDate accepts a bare day (promoted to UTC midnight), an
// RFC3339 timestamp, or an empty string meaning now.
func parseCompletedDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}

	if t, err := time.Parse(dayFormat, value); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, ErrInvalidDate
}

// itemTopic resolves the training log topic from the item's name.
func (s *Service) itemTopic(itemType models.ItemType, itemID uint64) string {
	switch itemType {
	case models.ItemTypeModule:
		var module models.TrainingModule
		if err := s.db.First(&module, itemID).Error; err == nil {
			return module.Name
		}
	case models.ItemTypeDocument:
		var document models.Document
		if err := s.db.First(&document, itemID).Error; err == nil {
			return document.Title
		}
	}

	// fall back to a stable synthetic topic
	return fmt.Sprintf("%s-%d", itemType, itemID)
}

// applyModuleSchedule computes the follow-up and refresher due dates from the
// module's configured periods.
func (s *Service) applyModuleSchedule(moduleID uint64, completedAt time.Time, result *CompletionResult) {
	var module models.TrainingModule
	if err := s.db.First(&module, moduleID).Error; err != nil {
		log.Warn().Err(err).Uint64("module_id", moduleID).
			Msg("failed to load module for schedule computation")

		return
	}

	if due, ok := module.FollowUpPeriod.DueFrom(completedAt); ok {
		result.FollowUpDue = &due
	}

	if due, ok := module.RefreshPeriod.DueFrom(completedAt); ok {
		result.RefreshDue = &due
	}
}

// cascadeLinkedDocuments completes the document assignments linked to a
// completed module. Each document is best-effort: a failure is logged and
// the remaining documents are still processed.
func (s *Service) cascadeLinkedDocuments(input CompletionInput, completedAt time.Time) int {
	documentIDs := input.LinkedDocumentIDs

	if len(documentIDs) == 0 {
		var links []models.ModuleDocument
		if err := s.db.Where("module_id = ?", input.ItemID).Find(&links).Error; err != nil {
			log.Warn().Err(err).Uint64("module_id", input.ItemID).
				Msg("failed to load linked documents")

			return 0
		}

		for _, link := range links {
			documentIDs = append(documentIDs, link.DocumentID)
		}
	}

	var completed int

	for _, docID := range documentIDs {
		res := s.db.Model(&models.UserAssignment{}).
			Where("auth_id = ? AND item_id = ? AND item_type = ?",
				input.AuthID, docID, models.ItemTypeDocument).
			Updates(map[string]interface{}{
				"completed_at":     completedAt,
				"training_outcome": models.OutcomeCompleted,
			})
		if res.Error != nil {
			log.Warn().Err(res.Error).Uint64("document_id", docID).Str("auth_id", input.AuthID).
				Msg("failed to cascade completion to linked document")

			continue
		}

		if res.RowsAffected > 0 {
			completed++
		}
	}

	return completed
}

// mirrorCompletion writes a completed assignment into the completion ledger.
func (s *Service) mirrorCompletion(assignment *models.UserAssignment) error {
	var user models.User

	var roleID *uint
	if err := s.db.Where("auth_id = ?", assignment.AuthID).First(&user).Error; err == nil {
		roleID = user.RoleID
	}

	ledger := models.UserTrainingCompletion{
		AuthID:            assignment.AuthID,
		ItemID:            assignment.ItemID,
		ItemType:          assignment.ItemType,
		CompletedAt:       *assignment.CompletedAt,
		CompletedByRoleID: roleID,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auth_id"}, {Name: "item_id"}, {Name: "item_type"}},
		DoNothing: true,
	}).Create(&ledger).Error; err != nil {
		return fmt.Errorf("failed to upsert completion ledger row: %w", err)
	}

	return nil
}

// upsertTrainingLog writes the per-day training log row, updating the outcome
// when a row for the same user, topic and day already exists.
func (s *Service) upsertTrainingLog(
	input CompletionInput,
	topic string,
	outcome models.TrainingOutcome,
	completedAt time.Time,
) error {
	entry := models.TrainingLog{
		AuthID:   input.AuthID,
		Topic:    topic,
		Date:     completedAt.UTC().Format(dayFormat),
		ItemType: input.ItemType,
		ItemID:   input.ItemID,
		Outcome:  outcome,
	}

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auth_id"}, {Name: "topic"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"outcome", "updated_at"}),
	}).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to upsert training log: %w", err)
	}

	return nil
}
