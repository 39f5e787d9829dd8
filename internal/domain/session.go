package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Language string `json:"language,omitempty"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Session is an immutable snapshot. Generation increases on every change so
// readers can tell that the session moved under them.
type Session struct {
	Tokens     Tokens
	User       *User
	Generation uint64
	UpdatedAt  time.Time
}

func (s Session) Present() bool {
	return s.Tokens.AccessToken != ""
}

type Credentials struct {
	Email    string
	Password string
}

type Registration struct {
	Credentials
	FullName string
	Language string
}

// AuthResult is what login and registration hand back.
type AuthResult struct {
	Tokens Tokens
	User   User
}

// TokenExpiry reads the exp claim of a JWT access token without verifying it.
// Tokens that are not JWTs, or carry no exp, report ok=false.
func TokenExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
