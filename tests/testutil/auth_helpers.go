package testutil

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kylebanzon/coolworks-api/config"
	"github.com/kylebanzon/coolworks-api/middleware"
	"github.com/kylebanzon/coolworks-api/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenTestDB opens a fresh in-memory database with the full schema migrated
// and installs it as the application database singleton
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.InventoryItem{},
		&models.Batch{},
		&models.JobOrder{},
		&models.MaterialUsage{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	return db
}

// NewTestConfig builds a config suitable for tests and installs it as the
// application config singleton
func NewTestConfig() *config.Config {
	cfg := &config.Config{
		GoEnv:              "test",
		JWTSecret:          "acceptance-test-secret",
		JWTExpirationHours: 24,
	}
	config.SetConfig(cfg)
	return cfg
}

// CreateUser inserts a user with a bcrypt-hashed password
func CreateUser(t *testing.T, db *gorm.DB, name, email, password, role string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

// TokenFor mints a valid bearer token for the given user
func TokenFor(t *testing.T, cfg *config.Config, user *models.User) string {
	t.Helper()

	token, err := middleware.MintToken(cfg, user, time.Now())
	if err != nil {
		t.Fatalf("Failed to mint token for %s: %v", user.Email, err)
	}
	return token
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
