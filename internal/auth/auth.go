// Package auth issues and verifies the opaque identity tokens used on
// both the HTTP API and the socket handshake.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Auth struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token carrying the principal id.
func (a *Auth) Issue(uid string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_uuid": uid,
		"iat":       now.Unix(),
		"exp":       now.Add(a.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.secret)
}

// Verify resolves a token to its principal id. Expired, malformed and
// wrongly-signed tokens all come back as ok=false; callers never see
// why.
func (a *Auth) Verify(token string) (string, bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	uid, ok := claims["user_uuid"].(string)
	if !ok || uid == "" {
		return "", false
	}
	return uid, true
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(b), err
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
