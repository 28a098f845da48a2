package training

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.RoleAssignment{},
		&models.UserAssignment{},
		&models.UserTrainingCompletion{},
		&models.UserRoleChangeLog{},
		&models.TrainingLog{},
		&models.TrainingModule{},
		&models.Document{},
		&models.ModuleDocument{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func createUser(t *testing.T, db *gorm.DB, roleID *uint) *models.User {
	t.Helper()

	user := &models.User{
		AuthID:    uuid.NewString(),
		Active:    true,
		Username:  "user-" + uuid.NewString()[:8],
		Email:     "user@example.com",
		FirstName: "Jamie",
		LastName:  "Doe",
		RoleID:    roleID,
	}
	require.NoError(t, db.Create(user).Error)

	return user
}

func createRole(t *testing.T, db *gorm.DB, name string, items ...models.ItemKey) *models.Role {
	t.Helper()

	role := &models.Role{Name: name}
	require.NoError(t, db.Create(role).Error)

	for _, item := range items {
		require.NoError(t, db.Create(&models.RoleAssignment{
			RoleID:   role.ID,
			ItemType: item.Type,
			ItemID:   item.ID,
		}).Error)
	}

	return role
}

func createAssignment(
	t *testing.T,
	db *gorm.DB,
	authID string,
	key models.ItemKey,
	completedAt *time.Time,
) *models.UserAssignment {
	t.Helper()

	assignment := &models.UserAssignment{
		AuthID:      authID,
		ItemID:      key.ID,
		ItemType:    key.Type,
		AssignedAt:  time.Now().UTC().Add(-24 * time.Hour),
		CompletedAt: completedAt,
	}
	if completedAt != nil {
		assignment.TrainingOutcome = models.OutcomeCompleted
	}

	require.NoError(t, db.Create(assignment).Error)

	return assignment
}

func loadAssignments(t *testing.T, db *gorm.DB, authID string) map[models.ItemKey]models.UserAssignment {
	t.Helper()

	var rows []models.UserAssignment
	require.NoError(t, db.Where("auth_id = ?", authID).Find(&rows).Error)

	out := make(map[models.ItemKey]models.UserAssignment, len(rows))
	for _, row := range rows {
		out[row.Key()] = row
	}

	return out
}

func moduleKey(id uint64) models.ItemKey {
	return models.ItemKey{Type: models.ItemTypeModule, ID: id}
}

func documentKey(id uint64) models.ItemKey {
	return models.ItemKey{Type: models.ItemTypeDocument, ID: id}
}

func TestReconcileRoleChange_Validation(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	_, err := service.ReconcileRoleChange(0, 1)
	require.ErrorIs(t, err, ErrUserIDRequired)

	_, err = service.ReconcileRoleChange(1, 0)
	require.ErrorIs(t, err, ErrRoleIDRequired)

	_, err = service.ReconcileRoleChange(42, 42)
	require.ErrorIs(t, err, ErrRoleNotFound)

	role := createRole(t, db, "packer")
	_, err = service.ReconcileRoleChange(42, role.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = NewService(nil).ReconcileRoleChange(1, 1)
	require.ErrorIs(t, err, ErrDBNil)
}

// Scenario A: M1 completed is retained, M2 stays, M3 is added.
func TestReconcileRoleChange_KeepsOverlapAddsMissing(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	r1 := createRole(t, db, "r1", moduleKey(1), moduleKey(2))
	r2 := createRole(t, db, "r2", moduleKey(2), moduleKey(3))
	user := createUser(t, db, &r1.ID)

	completed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	createAssignment(t, db, user.AuthID, moduleKey(1), &completed)
	createAssignment(t, db, user.AuthID, moduleKey(2), nil)

	result, err := service.ReconcileRoleChange(user.ID, r2.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, result.AssignmentsRemoved)
	assert.Equal(t, 1, result.AssignmentsAdded)
	assert.Equal(t, 0, result.CompletionsRestored)
	require.NotNil(t, result.OldRoleID)
	assert.Equal(t, r1.ID, *result.OldRoleID)
	assert.Equal(t, "Jamie Doe", result.UserName)

	assignments := loadAssignments(t, db, user.AuthID)
	require.Len(t, assignments, 3)

	// M1 retained with its completion even though R2 does not require it
	m1, ok := assignments[moduleKey(1)]
	require.True(t, ok)
	require.NotNil(t, m1.CompletedAt)
	assert.True(t, m1.CompletedAt.Equal(completed))

	// M3 added open
	m3, ok := assignments[moduleKey(3)]
	require.True(t, ok)
	assert.Nil(t, m3.CompletedAt)
}

// Scenario B: completed M1 kept, open M4 removed, M2 added.
func TestReconcileRoleChange_RemovesObsoleteOpenAssignments(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	r1 := createRole(t, db, "r1", moduleKey(1), moduleKey(4))
	r2 := createRole(t, db, "r2", moduleKey(2))
	user := createUser(t, db, &r1.ID)

	completed := time.Date(2023, 6, 15, 9, 30, 0, 0, time.UTC)
	createAssignment(t, db, user.AuthID, moduleKey(1), &completed)
	createAssignment(t, db, user.AuthID, moduleKey(4), nil)

	result, err := service.ReconcileRoleChange(user.ID, r2.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AssignmentsRemoved)
	assert.Equal(t, 1, result.AssignmentsAdded)

	assignments := loadAssignments(t, db, user.AuthID)
	require.Len(t, assignments, 2)
	assert.Contains(t, assignments, moduleKey(1))
	assert.Contains(t, assignments, moduleKey(2))
	assert.NotContains(t, assignments, moduleKey(4))

	// user role was moved
	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	require.NotNil(t, updated.RoleID)
	assert.Equal(t, r2.ID, *updated.RoleID)
}

// P4: a completed-then-removed item gets its original date back on re-add.
func TestReconcileRoleChange_RestoresCompletionDate(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	completedDate := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	rWith := createRole(t, db, "with-m7", moduleKey(7))
	rWithout := createRole(t, db, "without-m7")
	user := createUser(t, db, &rWith.ID)

	createAssignment(t, db, user.AuthID, moduleKey(7), &completedDate)

	// Away from the role: the completed assignment stays (P1) but is
	// mirrored to the ledger. Delete the live row manually afterwards to
	// simulate a later cleanup, then come back to the role.
	_, err := service.ReconcileRoleChange(user.ID, rWithout.ID)
	require.NoError(t, err)

	require.NoError(t, db.Where("auth_id = ?", user.AuthID).
		Delete(&models.UserAssignment{}).Error)

	result, err := service.ReconcileRoleChange(user.ID, rWith.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AssignmentsAdded)
	assert.Equal(t, 1, result.CompletionsRestored)

	assignments := loadAssignments(t, db, user.AuthID)
	m7, ok := assignments[moduleKey(7)]
	require.True(t, ok)
	require.NotNil(t, m7.CompletedAt, "restored assignment must carry the historical completion")
	assert.True(t, m7.CompletedAt.Equal(completedDate), "restored date must be the original, not now")
}

// P3: running the same reconciliation twice adds nothing the second time.
func TestReconcileRoleChange_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	r1 := createRole(t, db, "r1", moduleKey(1), documentKey(5))
	user := createUser(t, db, nil)

	first, err := service.ReconcileRoleChange(user.ID, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.AssignmentsAdded)
	assert.Nil(t, first.OldRoleID)

	second, err := service.ReconcileRoleChange(user.ID, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.AssignmentsAdded)
	assert.Equal(t, 0, second.AssignmentsRemoved)
}

// P2: a template with redundant rows still yields exactly one row per key.
func TestReconcileRoleChange_DeduplicatesTemplate(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	role := &models.Role{Name: "dupes"}
	require.NoError(t, db.Create(role).Error)

	// Same numeric item ID under both item types; these are distinct keys.
	require.NoError(t, db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeModule, ItemID: 9,
	}).Error)
	require.NoError(t, db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeDocument, ItemID: 9,
	}).Error)

	user := createUser(t, db, nil)

	result, err := service.ReconcileRoleChange(user.ID, role.ID)
	require.NoError(t, err)

	// module 9 and document 9 are distinct keys
	assert.Equal(t, 2, result.AssignmentsAdded)

	assignments := loadAssignments(t, db, user.AuthID)
	assert.Len(t, assignments, 2)
	assert.Contains(t, assignments, moduleKey(9))
	assert.Contains(t, assignments, documentKey(9))
}

// Empty target set: open assignments go, completed ones are pinned.
func TestReconcileRoleChange_EmptyRoleRemovesOnlyOpen(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	r1 := createRole(t, db, "full", moduleKey(1), moduleKey(2))
	empty := createRole(t, db, "empty")
	user := createUser(t, db, &r1.ID)

	completed := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	createAssignment(t, db, user.AuthID, moduleKey(1), &completed)
	createAssignment(t, db, user.AuthID, moduleKey(2), nil)

	result, err := service.ReconcileRoleChange(user.ID, empty.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AssignmentsRemoved)
	assert.Equal(t, 0, result.AssignmentsAdded)

	assignments := loadAssignments(t, db, user.AuthID)
	require.Len(t, assignments, 1)
	assert.Contains(t, assignments, moduleKey(1), "completed assignment must survive")
}

func TestReconcileRoleChange_WritesAuditLog(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	r1 := createRole(t, db, "r1", moduleKey(1))
	r2 := createRole(t, db, "r2", moduleKey(2))
	user := createUser(t, db, &r1.ID)
	createAssignment(t, db, user.AuthID, moduleKey(1), nil)

	_, err := service.ReconcileRoleChange(user.ID, r2.ID)
	require.NoError(t, err)

	var logs []models.UserRoleChangeLog
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&logs).Error)
	require.Len(t, logs, 1)

	require.NotNil(t, logs[0].OldRoleID)
	assert.Equal(t, r1.ID, *logs[0].OldRoleID)
	assert.Equal(t, r2.ID, logs[0].NewRoleID)
	assert.Equal(t, 1, logs[0].AssignmentsRemoved)
	assert.Equal(t, 1, logs[0].AssignmentsAdded)
	assert.False(t, logs[0].ChangedAt.IsZero())
}

func TestRecordCompletion_Validation(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	_, err := service.RecordCompletion(CompletionInput{})
	require.ErrorIs(t, err, ErrAuthIDRequired)

	_, err = service.RecordCompletion(CompletionInput{AuthID: "a"})
	require.ErrorIs(t, err, ErrItemIDRequired)

	_, err = service.RecordCompletion(CompletionInput{AuthID: "a", ItemID: 1, ItemType: "course"})
	require.ErrorIs(t, err, ErrInvalidItemType)

	_, err = service.RecordCompletion(CompletionInput{
		AuthID: "a", ItemID: 1, ItemType: models.ItemTypeModule, Outcome: "aced",
	})
	require.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = service.RecordCompletion(CompletionInput{
		AuthID: "a", ItemID: 1, ItemType: models.ItemTypeModule, CompletedDate: "01/02/2024",
	})
	require.ErrorIs(t, err, ErrInvalidDate)

	_, err = service.RecordCompletion(CompletionInput{
		AuthID: "a", ItemID: 1, ItemType: models.ItemTypeModule,
	})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestRecordCompletion_CompletesAssignment(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	module := &models.TrainingModule{
		Name:           "Allergen Awareness",
		Active:         true,
		FollowUpPeriod: models.Period2Weeks,
		RefreshPeriod:  models.Period1Year,
	}
	require.NoError(t, db.Create(module).Error)

	user := createUser(t, db, nil)
	createAssignment(t, db, user.AuthID, moduleKey(module.ID), nil)

	result, err := service.RecordCompletion(CompletionInput{
		AuthID:        user.AuthID,
		ItemID:        module.ID,
		ItemType:      models.ItemTypeModule,
		CompletedDate: "2024-05-01",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, result.Outcome)
	assert.Equal(t, "Allergen Awareness", result.Topic)

	wantCompleted := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, result.CompletedAt.Equal(wantCompleted), "bare date promotes to UTC midnight")

	require.NotNil(t, result.FollowUpDue)
	assert.True(t, result.FollowUpDue.Equal(wantCompleted.AddDate(0, 0, 14)))
	require.NotNil(t, result.RefreshDue)
	assert.True(t, result.RefreshDue.Equal(wantCompleted.AddDate(1, 0, 0)))

	assignments := loadAssignments(t, db, user.AuthID)
	row := assignments[moduleKey(module.ID)]
	require.NotNil(t, row.CompletedAt)
	assert.True(t, row.CompletedAt.Equal(wantCompleted))

	// completion was mirrored into the ledger
	var ledger []models.UserTrainingCompletion
	require.NoError(t, db.Where("auth_id = ?", user.AuthID).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.True(t, ledger[0].CompletedAt.Equal(wantCompleted))
}

// Scenario C: a failed outcome leaves the assignment open but is logged.
func TestRecordCompletion_FailedOutcomeKeepsAssignmentOpen(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	module := &models.TrainingModule{Name: "HACCP Basics", Active: true}
	require.NoError(t, db.Create(module).Error)

	user := createUser(t, db, nil)
	createAssignment(t, db, user.AuthID, moduleKey(module.ID), nil)

	result, err := service.RecordCompletion(CompletionInput{
		AuthID:   user.AuthID,
		ItemID:   module.ID,
		ItemType: models.ItemTypeModule,
		Outcome:  models.OutcomeFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, result.Outcome)

	assignments := loadAssignments(t, db, user.AuthID)
	row := assignments[moduleKey(module.ID)]
	assert.Nil(t, row.CompletedAt, "failed outcome must not close the assignment")
	assert.Equal(t, models.OutcomeFailed, row.TrainingOutcome)

	var logs []models.TrainingLog
	require.NoError(t, db.Where("auth_id = ?", user.AuthID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.OutcomeFailed, logs[0].Outcome)
}

// P5: same user, topic and day upserts rather than duplicating the log row.
func TestRecordCompletion_TrainingLogIdempotentPerDay(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	module := &models.TrainingModule{Name: "Glass Policy", Active: true}
	require.NoError(t, db.Create(module).Error)

	user := createUser(t, db, nil)
	createAssignment(t, db, user.AuthID, moduleKey(module.ID), nil)

	input := CompletionInput{
		AuthID:        user.AuthID,
		ItemID:        module.ID,
		ItemType:      models.ItemTypeModule,
		CompletedDate: "2024-02-02",
	}

	_, err := service.RecordCompletion(input)
	require.NoError(t, err)

	_, err = service.RecordCompletion(input)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.TrainingLog{}).
		Where("auth_id = ?", user.AuthID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// Scenario D: completing a module cascades to its linked documents.
func TestRecordCompletion_CascadesToLinkedDocuments(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	module := &models.TrainingModule{Name: "Hygiene Induction", Active: true}
	require.NoError(t, db.Create(module).Error)

	d1 := &models.Document{Title: "Handwashing SOP", Reference: "SOP-001"}
	d2 := &models.Document{Title: "PPE Policy", Reference: "POL-002"}
	require.NoError(t, db.Create(d1).Error)
	require.NoError(t, db.Create(d2).Error)

	user := createUser(t, db, nil)
	createAssignment(t, db, user.AuthID, moduleKey(module.ID), nil)
	createAssignment(t, db, user.AuthID, documentKey(d1.ID), nil)
	createAssignment(t, db, user.AuthID, documentKey(d2.ID), nil)

	result, err := service.RecordCompletion(CompletionInput{
		AuthID:            user.AuthID,
		ItemID:            module.ID,
		ItemType:          models.ItemTypeModule,
		CompletedDate:     "2024-07-04",
		LinkedDocumentIDs: []uint64{d1.ID, d2.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsCompleted)

	wantCompleted := time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)
	assignments := loadAssignments(t, db, user.AuthID)

	for _, key := range []models.ItemKey{documentKey(d1.ID), documentKey(d2.ID)} {
		row := assignments[key]
		require.NotNil(t, row.CompletedAt, "linked document must be completed")
		assert.True(t, row.CompletedAt.Equal(wantCompleted))
	}
}

// Linked documents default to the module_documents join rows when the caller
// does not name them.
func TestRecordCompletion_CascadeDefaultsToModuleLinks(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)

	module := &models.TrainingModule{Name: "Foreign Body Control", Active: true}
	require.NoError(t, db.Create(module).Error)

	doc := &models.Document{Title: "Metal Detection SOP", Reference: "SOP-014"}
	require.NoError(t, db.Create(doc).Error)

	require.NoError(t, db.Create(&models.ModuleDocument{
		ModuleID:   module.ID,
		DocumentID: doc.ID,
	}).Error)

	user := createUser(t, db, nil)
	createAssignment(t, db, user.AuthID, moduleKey(module.ID), nil)
	createAssignment(t, db, user.AuthID, documentKey(doc.ID), nil)

	result, err := service.RecordCompletion(CompletionInput{
		AuthID:   user.AuthID,
		ItemID:   module.ID,
		ItemType: models.ItemTypeModule,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsCompleted)
}
