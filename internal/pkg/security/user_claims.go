package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	JWTExpirationTime = time.Hour * 24
)

// SessionClaims 身份提供方签发的会话令牌，Subject 为 externalId
type SessionClaims struct {
	Name     string  `json:"name,omitempty"`
	Email    string  `json:"email,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	jwt.RegisteredClaims
}
