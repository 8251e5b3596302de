package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kylebanzon/coolworks-api/config"
	"github.com/kylebanzon/coolworks-api/middleware"
	"github.com/kylebanzon/coolworks-api/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv bundles everything a controller test needs: a migrated in-memory
// database, the wired router, and ready-made bearer tokens for both roles
type testEnv struct {
	db         *gorm.DB
	router     *gin.Engine
	cfg        *config.Config
	admin      models.User
	tech       models.User
	adminToken string
	techToken  string
}

func setupControllerTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.InventoryItem{},
		&models.Batch{},
		&models.JobOrder{},
		&models.MaterialUsage{},
	))

	cfg := &config.Config{
		JWTSecret:          "controller-test-secret",
		JWTExpirationHours: 24,
	}
	config.SetDB(db)
	config.SetConfig(cfg)

	env := &testEnv{db: db, cfg: cfg}
	env.admin = createTestUser(t, db, "Kyle Banzon", "kyle@coolworks.ph", "admin-pass-123", models.RoleAdmin)
	env.tech = createTestUser(t, db, "Marco Reyes", "marco@coolworks.ph", "tech-pass-123", models.RoleTechnician)

	env.adminToken, err = middleware.MintToken(cfg, &env.admin, time.Now())
	require.NoError(t, err)
	env.techToken, err = middleware.MintToken(cfg, &env.tech, time.Now())
	require.NoError(t, err)

	env.router = buildTestRouter(cfg)
	return env
}

func createTestUser(t *testing.T, db *gorm.DB, name, email, password, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// buildTestRouter mirrors the application routing so every test exercises the
// same auth middleware chain as production
func buildTestRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", Login)

	authed := v1.Group("", middleware.RequireAuth(cfg))
	authed.GET("/jobs", ListJobs)
	authed.GET("/jobs/:id", GetJob)
	authed.PATCH("/jobs/:id/status", UpdateJobStatus)
	authed.POST("/jobs/:id/photo", UploadJobPhoto)
	authed.GET("/inventory", ListInventory)

	admin := authed.Group("", middleware.RequireAdmin())
	admin.POST("/jobs", CreateJob)
	admin.PATCH("/jobs/:id/assign", AssignJob)
	admin.POST("/inventory", CreateInventoryItem)
	admin.GET("/inventory/export", ExportInventory)
	admin.PUT("/inventory/:id/batch", UpsertBatch)
	admin.DELETE("/inventory/:id/batch/:batchId", DeleteBatch)
	admin.DELETE("/inventory/:id", DeleteInventoryItem)
	admin.POST("/users", CreateUser)
	admin.PUT("/users/:id", UpdateUser)
	admin.DELETE("/users/:id", DeleteUser)
	admin.GET("/users/technicians", ListTechnicians)

	return router
}

// doJSON performs a JSON request against the test router and returns the
// recorder plus the decoded response body
func (env *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func errorCode(body map[string]interface{}) string {
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func dataField(body map[string]interface{}) map[string]interface{} {
	data, _ := body["data"].(map[string]interface{})
	return data
}
