package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nithinbasa/SmartGrid/internal/config"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "smartgrid"

// Claims represents JWT claims used by the dashboard.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type contextKey struct{}

// Manager issues and checks dashboard tokens. With no secret configured
// it is disabled and every request passes.
type Manager struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
	now    func() time.Time
}

func NewManager(cfg config.Auth) *Manager {
	users := make(map[string]string, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u.PasswordHash
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}

	return &Manager{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

func (m *Manager) Enabled() bool {
	return len(m.secret) > 0
}

// Login checks the password against the configured bcrypt hash and issues
// an HS256 token.
func (m *Manager) Login(username, password string) (string, time.Time, error) {
	errFactory := errors.New()

	if !m.Enabled() {
		return "", time.Time{}, errFactory.WithMessage(errors.ErrUnavailable, "authentication is disabled")
	}

	hash, ok := m.users[username]
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", time.Time{}, errFactory.New(errors.ErrInvalidCredentials)
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errFactory.Wrap(errors.ErrInternal, err)
	}
	return token, expires, nil
}

// Parse validates a token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	errFactory := errors.New()

	if tokenString == "" {
		return nil, errFactory.WithMessage(errors.ErrUnauthorized, "missing token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, errFactory.WithMessage(errors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

// Middleware requires a valid bearer token when the manager is enabled.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(w, "missing bearer token")
			return
		}

		claims, err := m.Parse(strings.TrimSpace(tokenString))
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
	})
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

// HashPassword creates a bcrypt hash for the users table in the config file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New().Wrap(errors.ErrInternal, err)
	}
	return string(hash), nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="smartgrid"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(errors.ErrUnauthorized),
		"message": message,
	})
}
