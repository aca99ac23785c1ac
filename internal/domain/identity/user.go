package identity

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tesis/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = bcrypt.DefaultCost

	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt truncates beyond this
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// User is an account owning theses.
type User struct {
	shared.BaseAggregateRoot
	Email        string
	DisplayName  string
	PasswordHash string
	Institution  string
	LastLoginAt  *time.Time
}

// NewUser creates a user with a bcrypt-hashed password
func NewUser(email, displayName, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}

	return &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		DisplayName:       displayName,
		PasswordHash:      hash,
	}, nil
}

// SetInstitution records the user's university
func (u *User) SetInstitution(institution string) error {
	institution = strings.TrimSpace(institution)
	if utf8.RuneCountInString(institution) > 200 {
		return shared.NewDomainError("INVALID_INPUT", "Institution cannot exceed 200 characters")
	}
	u.Institution = institution
	u.IncrementVersion()
	return nil
}

// VerifyPassword checks password against the stored hash
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// RecordLogin stamps the last successful login
func (u *User) RecordLogin() {
	now := time.Now()
	u.LastLoginAt = &now
	u.IncrementVersion()
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func validateEmail(email string) error {
	if email == "" {
		return shared.NewDomainError("INVALID_INPUT", "Email cannot be empty")
	}
	if len(email) > 200 {
		return shared.NewDomainError("INVALID_INPUT", "Email cannot exceed 200 characters")
	}
	if !emailRegex.MatchString(email) {
		return shared.NewDomainError("INVALID_INPUT", "Invalid email format")
	}
	return nil
}

func validateDisplayName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return shared.NewDomainError("INVALID_INPUT", "Display name cannot be empty")
	}
	if n > 100 {
		return shared.NewDomainError("INVALID_INPUT", "Display name cannot exceed 100 characters")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return shared.NewDomainError("INVALID_INPUT", "Password must be at least 8 characters")
	}
	if len(password) > maxPasswordLength {
		return shared.NewDomainError("INVALID_INPUT", "Password cannot exceed 72 bytes")
	}
	return nil
}
