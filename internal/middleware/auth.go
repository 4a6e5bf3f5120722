package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/authstate"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/pkg/jwtutil"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

// Keys set on echo.Context for authenticated requests
const (
	UserIDKey    = "user_id"
	EmailKey     = "email"
	SessionIDKey = "session_id"
)

// Authenticator validates the bearer token and requires its session to be live
type Authenticator struct {
	jwt        *jwtutil.JWTUtil
	sessions   *session.Registry
	signInPath string
}

// NewAuthenticator creates the authentication middleware
func NewAuthenticator(jwt *jwtutil.JWTUtil, sessions *session.Registry, signInPath string) *Authenticator {
	if signInPath == "" {
		signInPath = "/auth"
	}
	return &Authenticator{jwt: jwt, sessions: sessions, signInPath: signInPath}
}

func (a *Authenticator) unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": message, "redirect": a.signInPath})
}

// Middleware rejects requests without a valid token bound to an active session
func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordError("missing_token")
			return a.unauthorized(c, "missing authorization token")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordError("invalid_auth_format")
			return a.unauthorized(c, "invalid authorization format, expected Bearer token")
		}

		claims, err := a.jwt.ValidateToken(parts[1])
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordError("invalid_token")
			return a.unauthorized(c, "invalid or expired token")
		}

		monitor, ok := a.sessions.Lookup(claims.SessionID)
		if ok && monitor.Status() == authstate.StatusLoggedOut {
			return a.expired(c, claims.SessionID)
		}
		if !ok || monitor.Status() != authstate.StatusActive {
			monitor, err = a.sessions.Ensure(c.Request().Context(), claims.SessionID)
			if errors.Is(err, session.ErrNoSession) {
				return a.expired(c, claims.SessionID)
			}
			if errors.Is(err, session.ErrRegistryClosed) {
				prometheus.RecordError("shutting_down")
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "server is shutting down"})
			}
			if err != nil {
				log.Error("Failed to load session", zap.String("session_id", claims.SessionID), zap.Error(err))
				prometheus.RecordError("session_lookup_failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
			}
		}

		if monitor.Info().UserID != claims.UserID {
			log.Warn("Token does not match its session",
				zap.String("session_id", claims.SessionID),
				zap.Uint("user_id", claims.UserID))
			prometheus.RecordError("session_mismatch")
			return a.unauthorized(c, "invalid or expired token")
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(SessionIDKey, claims.SessionID)

		return next(c)
	}
}

// expired answers for a session that has ended and hands the client whatever
// notifications were still waiting for it.
func (a *Authenticator) expired(c echo.Context, sessionID string) error {
	notifications, redirect, _ := a.sessions.Drain(sessionID)
	a.sessions.Forget(sessionID)
	if redirect == "" {
		redirect = a.signInPath
	}
	if notifications == nil {
		notifications = []session.Notification{}
	}

	logger.FromContext(c).Info("Rejected request for ended session", zap.String("session_id", sessionID))
	prometheus.RecordError("session_expired")
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error":         "session expired",
		"redirect":      redirect,
		"notifications": notifications,
	})
}
