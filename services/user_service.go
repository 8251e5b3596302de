package services

import (
	"errors"
	"strings"

	"github.com/kylebanzon/coolworks-api/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService owns the user accounts that back authentication and assignment
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a user service backed by the given database
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUserInput carries the fields for creating a user account
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateUserInput carries the optional fields of a partial account update.
// Empty fields are left unchanged; a non-empty password is re-hashed.
type UpdateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Create adds a user account with a bcrypt-hashed password
func (s *UserService) Create(actor Actor, input CreateUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can manage user accounts")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("Name is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, NewValidationError("Email is required")
	}
	if input.Role != models.RoleAdmin && input.Role != models.RoleTechnician {
		return nil, NewValidationError("Role must be admin or technician")
	}
	if len(input.Password) < 8 {
		return nil, NewValidationError("Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewValidationError("Password cannot be hashed")
	}

	user := models.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.TrimSpace(input.Email),
		Role:         input.Role,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&user).Error; err != nil {
		if isDuplicateEmail(err) {
			return nil, NewConflictError("A user with this email already exists")
		}
		return nil, NewUnavailableError("Failed to create user")
	}

	return &user, nil
}

// Update applies the non-empty fields of input to an existing account
func (s *UserService) Update(actor Actor, userID uint, input UpdateUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can manage user accounts")
	}
	if input.Role != "" && input.Role != models.RoleAdmin && input.Role != models.RoleTechnician {
		return nil, NewValidationError("Role must be admin or technician")
	}
	if input.Password != "" && len(input.Password) < 8 {
		return nil, NewValidationError("Password must be at least 8 characters")
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("User not found")
		}
		return nil, NewUnavailableError("Failed to load user")
	}

	updates := make(map[string]interface{})
	if strings.TrimSpace(input.Name) != "" {
		updates["name"] = strings.TrimSpace(input.Name)
	}
	if strings.TrimSpace(input.Email) != "" {
		updates["email"] = strings.TrimSpace(input.Email)
	}
	if input.Role != "" {
		updates["role"] = input.Role
	}
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, NewValidationError("Password cannot be hashed")
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) == 0 {
		return &user, nil
	}

	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		if isDuplicateEmail(err) {
			return nil, NewConflictError("A user with this email already exists")
		}
		return nil, NewUnavailableError("Failed to update user")
	}

	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, NewUnavailableError("Failed to reload user")
	}
	return &user, nil
}

// Delete removes a user account
func (s *UserService) Delete(actor Actor, userID uint) error {
	if !actor.IsAdmin() {
		return NewForbiddenError("Only administrators can manage user accounts")
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewNotFoundError("User not found")
		}
		return NewUnavailableError("Failed to load user")
	}

	if err := s.db.Delete(&user).Error; err != nil {
		return NewUnavailableError("Failed to delete user")
	}
	return nil
}

// ListTechnicians returns every technician account in id order
func (s *UserService) ListTechnicians(actor Actor) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can list technicians")
	}

	var technicians []models.User
	err := s.db.Where("role = ?", models.RoleTechnician).Order("id ASC").Find(&technicians).Error
	if err != nil {
		return nil, NewUnavailableError("Failed to list technicians")
	}
	return technicians, nil
}

// isDuplicateEmail detects a unique-constraint violation on users.email.
// Checks gorm's translated error first, then the raw driver messages of
// PostgreSQL and SQLite.
func isDuplicateEmail(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
