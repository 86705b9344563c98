package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"discoverly/models"
	"discoverly/utils"
)

// Identity is what the external identity provider tells us about a caller.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Avatar  string
}

type UserService struct {
	base
}

// ResolveIdentity returns the local user for an external identity, creating
// it on first sight and refreshing profile fields the provider changed.
func (s *UserService) ResolveIdentity(ctx context.Context, id Identity) (*models.User, error) {
	if id.Subject == "" {
		return nil, Unauthorized("Missing identity")
	}
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("external_id = ?", id.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ExternalID: id.Subject,
			Email:      id.Email,
			Role:       models.RoleUser,
		}
		if id.Name != "" {
			user.FullName = utils.Pointer(id.Name)
		}
		if id.Avatar != "" {
			user.AvatarURL = utils.Pointer(id.Avatar)
		}
		if err := db.Create(&user).Error; err != nil {
			if !isUniqueViolation(err) {
				return nil, Internal("create user", err)
			}
			// a concurrent first request created the row
			if err := db.Where("external_id = ?", id.Subject).First(&user).Error; err != nil {
				return nil, Internal("load user", err)
			}
		}
		return &user, nil
	}
	if err != nil {
		return nil, Internal("load user", err)
	}

	changes := map[string]interface{}{}
	if id.Email != "" && id.Email != user.Email {
		changes["email"] = id.Email
	}
	if id.Name != "" && (user.FullName == nil || *user.FullName != id.Name) {
		changes["full_name"] = id.Name
	}
	if id.Avatar != "" && (user.AvatarURL == nil || *user.AvatarURL != id.Avatar) {
		changes["avatar_url"] = id.Avatar
	}
	if len(changes) > 0 {
		if err := db.Model(&user).Updates(changes).Error; err != nil {
			return nil, Internal("refresh user profile", err)
		}
		if err := db.First(&user, user.ID).Error; err != nil {
			return nil, Internal("load user", err)
		}
		s.points.Invalidate()
	}
	return &user, nil
}

func (s *UserService) Me(ctx context.Context, caller *models.User) (*models.User, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, caller.ID).Error; err != nil {
		return nil, lookupErr(err, "User not found", "load user")
	}
	return &user, nil
}

// UpdateRole lets a user switch between tester and builder.
func (s *UserService) UpdateRole(ctx context.Context, caller *models.User, role string) (*models.User, error) {
	if caller == nil {
		return nil, Unauthorized("Authentication required")
	}
	if !models.SelfAssignableRole(role) {
		return nil, InvalidInput("Invalid role. Must be 'user' or 'builder'")
	}
	if caller.IsAdmin() {
		return nil, Forbidden("Admins cannot change their own role")
	}

	if err := s.db.WithContext(ctx).Model(caller).Update("role", role).Error; err != nil {
		return nil, Internal("update role", err)
	}
	caller.Role = role
	return caller, nil
}
