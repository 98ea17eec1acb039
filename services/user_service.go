package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ironworks/storefront-api/models"
	"gorm.io/gorm"
)

var (
	// ErrMissingEmail is returned when the identity provider has no email for the account
	ErrMissingEmail = errors.New("email not provided by identity provider")
	// ErrMissingName is returned when the identity provider has no name for the account
	ErrMissingName = errors.New("name not provided by identity provider")
	// ErrUserExists is returned when the Auth0 ID or email is already registered
	ErrUserExists = fmt.Errorf("user already exists: %w", ErrConflict)
	// ErrEmailTaken is returned when a profile update collides with another account's email
	ErrEmailTaken = fmt.Errorf("email already in use: %w", ErrConflict)
)

// ProfileUpdate holds the self-service profile fields; empty fields are left unchanged
type ProfileUpdate struct {
	Name  string
	Email string
	Phone string
}

// UserService manages storefront accounts
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register stores the account described by the identity provider.
// Only a staff role claim yields a staff account.
func (s *UserService) Register(ctx context.Context, auth0ID, roleClaim string, info *Auth0UserInfo) (*models.User, error) {
	if strings.TrimSpace(info.Email) == "" {
		return nil, ErrMissingEmail
	}
	name := info.DisplayName()
	if name == "" {
		return nil, ErrMissingName
	}

	role := models.RoleCustomer
	if roleClaim == models.RoleStaff {
		role = models.RoleStaff
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   info.Email,
		Phone:   info.PhoneNumber,
		Role:    role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

// Profile returns the account behind an Auth0 subject
func (s *UserService) Profile(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// UpdateProfile applies the non-empty fields of the update and returns the stored profile
func (s *UserService) UpdateProfile(ctx context.Context, auth0ID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.Profile(ctx, auth0ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Email != "" {
		updates["email"] = in.Email
	}
	if in.Phone != "" {
		updates["phone"] = in.Phone
	}
	if len(updates) == 0 {
		return user, nil
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	return s.Profile(ctx, auth0ID)
}
