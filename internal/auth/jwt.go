package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// OperatorSubject is the subject of every token; the manager has one operator.
const OperatorSubject = "operator"

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is not configured")
)

// Claims defines the JWT claims structure.
type Claims struct {
	jwt.RegisteredClaims
}

type contextKey string

// ClaimsKey is the context key for the validated claims.
const ClaimsKey = contextKey("claims")

// Authenticator issues and checks operator tokens.
type Authenticator struct {
	secret       []byte
	passwordHash []byte
	now          func() time.Time
}

// NewAuthenticator returns an Authenticator. With an empty secret every
// request is let through and Login is refused.
func NewAuthenticator(secret, passwordHash string) *Authenticator {
	return &Authenticator{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		now:          time.Now,
	}
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Login checks password against the configured bcrypt hash and returns a
// signed token.
func (a *Authenticator) Login(password string) (string, error) {
	if !a.Enabled() || len(a.passwordHash) == 0 {
		return "", ErrAuthDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.GenerateJWT()
}

// GenerateJWT creates a new operator token.
func (a *Authenticator) GenerateJWT() (string, error) {
	now := a.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OperatorSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateJWT parses and validates a JWT string.
func (a *Authenticator) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware protects routes. The token is read from the Authorization
// header, then from the "token" cookie.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		var tokenStr string
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenStr == authHeader {
				tokenStr = ""
			}
		}
		if tokenStr == "" {
			if cookie, err := r.Cookie("token"); err == nil {
				tokenStr = cookie.Value
			}
		}
		if tokenStr == "" {
			http.Error(w, "Missing auth token", http.StatusUnauthorized)
			return
		}

		claims, err := a.ValidateJWT(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Rejected auth token")
			http.Error(w, "Invalid auth token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
