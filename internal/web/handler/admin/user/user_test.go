package user

import (
	"encoding/json"
	"fmt"
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
	app     *fiber.App
	db      *gorm.DB
	cookie  string
	adminID uint64
}

// newTestEnv builds an app with the handler registered and a logged-in
// session holding the admin.users permission.
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

	permission := models.Permission{Name: auth.PermAdminUsers, Resource: "admin", Action: "users"}
	require.NoError(t, db.Create(&permission).Error)

	adminRole := models.Role{Name: "people-ops"}
	require.NoError(t, db.Create(&adminRole).Error)
	require.NoError(t, db.Create(&models.RolePermission{
		RoleID:       adminRole.ID,
		PermissionID: permission.ID,
	}).Error)

	admin := models.User{
		AuthID:   uuid.NewString(),
		Username: "people-ops",
		Email:    "people-ops@example.com",
		Active:   true,
		RoleID:   &adminRole.ID,
	}
	require.NoError(t, db.Create(&admin).Error)

	sessionID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	sessionData := &websess.Data{User: admin}
	require.NoError(t, sessionData.Write(sessionID, time.Minute))

	return &testEnv{
		app:     app,
		db:      db,
		cookie:  "session=" + sessionID,
		adminID: admin.ID,
	}
}

func (e *testEnv) request(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", e.cookie)

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

func TestCreate_WithRoleAppliesTemplate(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "line-operator"}
	require.NoError(t, env.db.Create(&role).Error)
	require.NoError(t, env.db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeModule, ItemID: 7,
	}).Error)
	require.NoError(t, env.db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeDocument, ItemID: 8,
	}).Error)

	body := fmt.Sprintf(
		`{"username":"jamie","email":"jamie@example.com","password":"secretpass","first_name":"Jamie","last_name":"Doe","role_id":%d}`,
		role.ID,
	)

	resp := env.request(t, http.MethodPost, Path, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "jamie", out["username"])
	assert.Equal(t, float64(role.ID), out["role_id"])
	assert.NotEmpty(t, out["auth_id"])

	var assignments []models.UserAssignment
	require.NoError(t, env.db.
		Where("auth_id = ?", out["auth_id"]).Find(&assignments).Error)
	assert.Len(t, assignments, 2)
}

func TestCreate_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)

	body := `{"username":"jamie","email":"jamie@example.com","password":"secretpass"}`

	resp := env.request(t, http.MethodPost, Path, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = env.request(t, http.MethodPost, Path,
		`{"username":"jamie","email":"other@example.com","password":"secretpass"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreate_ShortPassword(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, Path,
		`{"username":"jamie","email":"jamie@example.com","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "validation failed", out["error"])
}

func TestUpdate_RoleChangeRunsReconciler(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "line-operator"}
	require.NoError(t, env.db.Create(&role).Error)
	require.NoError(t, env.db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeModule, ItemID: 7,
	}).Error)

	worker := models.User{
		AuthID:   uuid.NewString(),
		Username: "worker",
		Email:    "worker@example.com",
		Active:   true,
	}
	require.NoError(t, env.db.Create(&worker).Error)

	body := fmt.Sprintf(`{"email":"worker@example.com","role_id":%d}`, role.ID)

	resp := env.request(t, http.MethodPut, fmt.Sprintf("%s/%d", Path, worker.ID), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, float64(1), out["assignments_added"])
	assert.Equal(t, float64(0), out["assignments_removed"])

	var assignments []models.UserAssignment
	require.NoError(t, env.db.Where("auth_id = ?", worker.AuthID).Find(&assignments).Error)
	assert.Len(t, assignments, 1)
}

func TestUpdate_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPut, Path+"/9999",
		`{"email":"nobody@example.com"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelete_SelfForbidden(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodDelete,
		fmt.Sprintf("%s/%d", Path, env.adminID), "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "you cannot delete your own account", out["error"])
}

func TestDelete_AdminRoleProtected(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "admin", IsSystem: true}
	require.NoError(t, env.db.Create(&role).Error)

	target := models.User{
		AuthID:   uuid.NewString(),
		Username: "root",
		Email:    "root@example.com",
		Active:   true,
		RoleID:   &role.ID,
	}
	require.NoError(t, env.db.Create(&target).Error)

	resp := env.request(t, http.MethodDelete,
		fmt.Sprintf("%s/%d", Path, target.ID), "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestList_Search(t *testing.T) {
	env := newTestEnv(t)

	for _, u := range []models.User{
		{AuthID: uuid.NewString(), Username: "jamie.doe", Email: "jamie@example.com", Active: true},
		{AuthID: uuid.NewString(), Username: "pat.lee", Email: "pat@example.com", Active: true},
	} {
		require.NoError(t, env.db.Create(&u).Error)
	}

	resp := env.request(t, http.MethodGet, Path+"?search=jamie", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	users := out["users"].([]interface{})
	require.Len(t, users, 1)

	first := users[0].(map[string]interface{})
	assert.Equal(t, "jamie.doe", first["username"])
	assert.Equal(t, float64(1), out["total_items"])
}
