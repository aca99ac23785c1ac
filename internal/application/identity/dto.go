package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/identity"
)

// RegisterInput contains the input for account creation
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
	Institution string
}

// LoginInput contains the input for user login
type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// AuthResult is returned by Register, Login and Refresh
type AuthResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	TokenType             string
	User                  UserInfo
}

// UserInfo is the public profile of a user
type UserInfo struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	Institution string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// LogoutInput identifies the tokens to revoke
type LogoutInput struct {
	UserID         uuid.UUID
	AccessTokenJTI string
	AccessTokenTTL time.Duration
	RefreshToken   string // optional
}

func toUserInfo(u *identity.User) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Institution: u.Institution,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
