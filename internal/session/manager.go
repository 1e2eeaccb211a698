package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

// DefaultCookieName is the cookie carrying the visitor session.
const DefaultCookieName = "salon_session"

var errInvalidSession = errors.New("session: invalid cookie")

// Manager issues and verifies the visitor session cookie. With a secret the
// cookie is an HS256 token whose subject is the session id; without one it
// is the bare id.
type Manager struct {
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
	now        func() time.Time
	logger     *logging.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithSecureCookie marks issued cookies Secure.
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager builds a Manager.
func NewManager(cookieName, secret string, ttl time.Duration, opts ...Option) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &Manager{
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		now:        time.Now,
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Middleware resolves the visitor session, issuing a new cookie when the
// request carries none or an invalid one, and stores the id in the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(m.cookieName); err == nil {
			if id, err := m.Decode(cookie.Value); err == nil {
				sessionID = id
			} else {
				m.logger.Debug("session: rejected cookie", "error", err)
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			value, err := m.Encode(sessionID)
			if err != nil {
				m.logger.Error("session: issue cookie failed", "error", err)
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    value,
				Path:     "/",
				MaxAge:   int(m.ttl.Seconds()),
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), sessionID)))
	})
}

// Encode produces the cookie value for sessionID.
func (m *Manager) Encode(sessionID string) (string, error) {
	if len(m.secret) == 0 {
		return sessionID, nil
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Decode returns the session id held by a cookie value.
func (m *Manager) Decode(value string) (string, error) {
	if len(m.secret) == 0 {
		if _, err := uuid.Parse(value); err != nil {
			return "", errInvalidSession
		}
		return value, nil
	}
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", errInvalidSession
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", errInvalidSession
	}
	return claims.Subject, nil
}
