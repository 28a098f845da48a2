package roleprofile

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
	app    *fiber.App
	db     *gorm.DB
	cookie string
}

// newTestEnv builds an app with the handler registered and a logged-in
// session holding the admin.roles permission.
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

	permission := models.Permission{Name: auth.PermAdminRoles, Resource: "admin", Action: "roles"}
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
		app:    app,
		db:     db,
		cookie: "session=" + sessionID,
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

func TestCreate_WithPermissions(t *testing.T) {
	env := newTestEnv(t)

	body := fmt.Sprintf(`{"name":"line-lead","description":"shift leads","permissions":[%q]}`,
		auth.PermAdminRoles)

	resp := env.request(t, http.MethodPost, Path, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "line-lead", out["name"])

	var count int64
	require.NoError(t, env.db.Model(&models.RolePermission{}).
		Where("role_id = ?", uint(out["id"].(float64))).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreate_UnknownPermission(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, Path,
		`{"name":"line-lead","permissions":["no.such.permission"]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Contains(t, out["details"], "unknown permission")
}

func TestPutAssignments_ReplacesTemplate(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "operator"}
	require.NoError(t, env.db.Create(&role).Error)

	path := fmt.Sprintf("%s/%d/assignments", Path, role.ID)

	// Duplicate entries collapse to one template row.
	resp := env.request(t, http.MethodPut, path, `{"assignments":[
		{"item_type":"module","item_id":5},
		{"item_type":"document","item_id":5},
		{"item_type":"module","item_id":5}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, float64(2), out["template_size"])

	var rows []models.RoleAssignment
	require.NoError(t, env.db.Where("role_id = ?", role.ID).Find(&rows).Error)
	require.Len(t, rows, 2)

	// A second PUT swaps the set wholesale.
	resp = env.request(t, http.MethodPut, path, `{"assignments":[
		{"item_type":"document","item_id":9}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, env.db.Where("role_id = ?", role.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ItemTypeDocument, rows[0].ItemType)
	assert.Equal(t, uint64(9), rows[0].ItemID)
}

func TestPutAssignments_InvalidItemType(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "operator"}
	require.NoError(t, env.db.Create(&role).Error)

	resp := env.request(t, http.MethodPut,
		fmt.Sprintf("%s/%d/assignments", Path, role.ID),
		`{"assignments":[{"item_type":"course","item_id":1}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPutAssignments_UnknownRole(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPut, Path+"/9999/assignments",
		`{"assignments":[]}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAssignments(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "operator"}
	require.NoError(t, env.db.Create(&role).Error)
	require.NoError(t, env.db.Create(&models.RoleAssignment{
		RoleID: role.ID, ItemType: models.ItemTypeModule, ItemID: 3,
	}).Error)

	resp := env.request(t, http.MethodGet,
		fmt.Sprintf("%s/%d/assignments", Path, role.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	items := out["assignments"].([]interface{})
	require.Len(t, items, 1)

	first := items[0].(map[string]interface{})
	assert.Equal(t, "module", first["item_type"])
	assert.Equal(t, float64(3), first["item_id"])
}

func TestDelete_SystemRoleForbidden(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "admin", IsSystem: true}
	require.NoError(t, env.db.Create(&role).Error)

	resp := env.request(t, http.MethodDelete, fmt.Sprintf("%s/%d", Path, role.ID), "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDelete_RoleStillInUse(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "operator"}
	require.NoError(t, env.db.Create(&role).Error)
	require.NoError(t, env.db.Create(&models.User{
		AuthID:   uuid.NewString(),
		Username: "worker",
		Email:    "worker@example.com",
		Active:   true,
		RoleID:   &role.ID,
	}).Error)

	resp := env.request(t, http.MethodDelete, fmt.Sprintf("%s/%d", Path, role.ID), "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, float64(1), out["user_count"])
}

func TestDelete_UnusedRole(t *testing.T) {
	env := newTestEnv(t)

	role := models.Role{Name: "obsolete"}
	require.NoError(t, env.db.Create(&role).Error)

	resp := env.request(t, http.MethodDelete, fmt.Sprintf("%s/%d", Path, role.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, env.db.Model(&models.Role{}).
		Where("id = ?", role.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
