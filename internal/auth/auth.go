// Package auth guards the mutating dashboard endpoints: bcrypt check of
// the configured operator password, JWT issue/validate, claims
// extraction from HTTP requests.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Auth struct {
	secret       []byte
	expiry       time.Duration
	operator     string
	passwordHash string
}

type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// New builds an Auth from config. An empty passwordHash disables login
// entirely (Enabled reports false) and callers leave mutating routes
// open — development mode.
func New(secret, operator, passwordHash string, expiryMinutes int) *Auth {
	return &Auth{
		secret:       []byte(secret),
		expiry:       time.Duration(expiryMinutes) * time.Minute,
		operator:     operator,
		passwordHash: passwordHash,
	}
}

// Enabled reports whether an operator password is configured.
func (a *Auth) Enabled() bool {
	return a.passwordHash != ""
}

// Login checks the handle/password pair against the configured operator
// and returns a signed token.
func (a *Auth) Login(handle, password string) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("login disabled: no operator password configured")
	}
	if handle != a.operator {
		return "", fmt.Errorf("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		return "", fmt.Errorf("invalid credentials")
	}
	return a.generateToken(handle)
}

// HashPassword produces a bcrypt hash suitable for the config file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *Auth) generateToken(operator string) (string, error) {
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ExtractClaims reads the JWT from the Authorization header (Bearer
// token). Returns nil if no valid token is present.
func (a *Auth) ExtractClaims(r *http.Request) *Claims {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}
	claims, err := a.ValidateToken(parts[1])
	if err != nil {
		return nil
	}
	return claims
}

// Authorized reports whether the request may hit a mutating endpoint:
// always true when auth is disabled, otherwise requires a valid token.
func (a *Auth) Authorized(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	return a.ExtractClaims(r) != nil
}
