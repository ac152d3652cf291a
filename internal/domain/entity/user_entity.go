package entity

import (
	"time"

	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// User is the aggregate root for the account domain.
// Username and Email are stored lowercased. PasswordHash holds a bcrypt hash
// and, like RefreshToken, is never serialized.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Fullname      string    `json:"fullname"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	PasswordHash  string    `json:"-"`
	RefreshToken  string    `json:"-"` // empty when no session is live
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PasswordMatches reports whether plain matches the stored hash.
func (u *User) PasswordMatches(plain string) bool {
	return helpers.PasswordMatches(u.PasswordHash, plain)
}

// WithoutSecrets returns a copy with the password hash and refresh token cleared.
func (u *User) WithoutSecrets() *User {
	cp := *u
	cp.PasswordHash = ""
	cp.RefreshToken = ""
	return &cp
}
