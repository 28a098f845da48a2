package rolechange

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/CompliTrack/CompliTrack/internal/auth"
	"github.com/CompliTrack/CompliTrack/internal/config"
	"github.com/CompliTrack/CompliTrack/internal/db/models"
	websess "github.com/CompliTrack/CompliTrack/internal/web/session"
)

// testStorage is a minimal in-memory implementation of storage.Storage for tests.
type testStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Storage = (*testStorage)(nil)

func (s *testStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.data[key]
	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *testStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(val))
	copy(buf, val)
	s.data[key] = buf

	return nil
}

func (s *testStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *testStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *testStorage) Close() error { return nil }

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	cookie string
}

// newTestEnv builds an app with the handler registered and a logged-in
// manager session holding the training.assign permission.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.RoleAssignment{},
		&models.UserAssignment{},
		&models.UserTrainingCompletion{},
		&models.UserRoleChangeLog{},
	))

	websess.Init(&testStorage{data: make(map[string][]byte)})

	cfg := &config.Config{
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}

	app := fiber.New()
	authService := auth.NewService(db)

	var s Service
	s.Init(app, cfg, db, authService)

	// manager role holding the permission the endpoint requires
	permission := models.Permission{Name: auth.PermTrainingAssign, Resource: "training", Action: "assign"}
	require.NoError(t, db.Create(&permission).Error)

	managerRole := models.Role{Name: "manager"}
	require.NoError(t, db.Create(&managerRole).Error)
	require.NoError(t, db.Create(&models.RolePermission{
		RoleID:       managerRole.ID,
		PermissionID: permission.ID,
	}).Error)

	manager := models.User{
		AuthID:   uuid.NewString(),
		Username: "manager",
		Email:    "manager@example.com",
		Active:   true,
		RoleID:   &managerRole.ID,
	}
	require.NoError(t, db.Create(&manager).Error)

	sessionID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	sessionData := &websess.Data{User: manager}
	require.NoError(t, sessionData.Write(sessionID, time.Minute))

	return &testEnv{
		app:    app,
		db:     db,
		cookie: "session=" + sessionID,
	}
}

func (e *testEnv) post(t *testing.T, body string, withAuth bool) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if withAuth {
		req.Header.Set("Cookie", e.cookie)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err, "app.Test failed")

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestPost_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, `{"user_id":1,"new_role_id":1}`, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPost_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, `{"user_id":0,"new_role_id":0}`, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "user_id and new_role_id are required", body["error"])
}

func TestPost_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "packer"}
	require.NoError(t, env.db.Create(&role).Error)

	resp := env.post(t, `{"user_id":9999,"new_role_id":2}`, true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "user not found", body["error"])
}

func TestPost_UnknownRole(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, `{"user_id":1,"new_role_id":9999}`, true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "role not found", body["error"])
}

func TestPost_Success(t *testing.T) {
	env := newTestEnv(t)

	// target role with a two item template
	role := models.Role{Name: "line-operator"}
	require.NoError(t, env.db.Create(&role).Error)
	require.NoError(t, env.db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeModule, ItemID: 11,
	}).Error)
	require.NoError(t, env.db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeDocument, ItemID: 12,
	}).Error)

	worker := models.User{
		AuthID:    uuid.NewString(),
		Username:  "worker",
		Email:     "worker@example.com",
		Active:    true,
		FirstName: "Pat",
		LastName:  "Lee",
	}
	require.NoError(t, env.db.Create(&worker).Error)

	resp := env.post(t, `{"user_id":2,"new_role_id":2}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "user role changed", body["message"])
	assert.Equal(t, float64(worker.ID), body["user_id"])
	assert.Equal(t, "Pat Lee", body["user_name"])
	assert.Nil(t, body["old_role_id"])
	assert.Equal(t, float64(role.ID), body["new_role_id"])
	assert.Equal(t, float64(0), body["assignments_removed"])
	assert.Equal(t, float64(2), body["assignments_added"])
	assert.Equal(t, float64(0), body["completions_restored"])

	var assignments []models.UserAssignment
	require.NoError(t, env.db.Where("auth_id = ?", worker.AuthID).Find(&assignments).Error)
	assert.Len(t, assignments, 2)
}
