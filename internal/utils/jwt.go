// Package utils provides helpers for minting and verifying access tokens.
package utils

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Roles carried in the "role" claim.
const (
	RoleMember = "MEMBER" // a chat user, subject is the chat platform user id
	RoleStaff  = "STAFF"  // consultation staff
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims is what the server reads back out of a verified token.
type Claims struct {
	Subject string
	Role    string
}

// NewAccessToken builds and signs an HS256 JWT.  The chat gateway mints
// MEMBER tokens whose subject is the chat user id; staff tools mint STAFF
// tokens.  The JWT carries sub, role, exp and iat.
func NewAccessToken(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return AccessToken{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		return AccessToken{}, errors.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, errors.Wrap(err, "sign token")
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns its claims.  Only
// HMAC-signed tokens with an expiry and a string subject are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, errors.Wrap(err, "parse token")
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, errors.New("invalid claims")
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, errors.New("token has no subject")
	}
	role, _ := mc["role"].(string)
	return Claims{Subject: sub, Role: role}, nil
}
