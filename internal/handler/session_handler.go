package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
)

type activityRequest struct {
	Type string `json:"type" validate:"required"`
}

// GetSession reports the state of the caller's session
func (h *Handler) GetSession(c echo.Context) error {
	monitor, ok := h.sessions.Lookup(currentSessionID(c))
	if !ok {
		return respond(c, unauthenticated())
	}

	info := monitor.Info()
	return c.JSON(http.StatusOK, echo.Map{
		"status":               monitor.Status(),
		"session_id":           info.SessionID,
		"user_id":              info.UserID,
		"email":                info.Email,
		"expires_at":           monitor.ExpiresAt(),
		"idle_timeout_seconds": int(h.idleTimeout.Seconds()),
	})
}

// RecordActivity feeds a browser input event to the session's idle monitor
func (h *Handler) RecordActivity(c echo.Context) error {
	log := logger.FromContext(c)
	sessionID := currentSessionID(c)

	var req activityRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}
	kind, err := session.ParseEventKind(req.Type)
	if err != nil {
		return respond(c, badRequest("invalid_activity", err.Error()))
	}

	if err := h.sessions.Publish(sessionID, kind); err != nil {
		if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrUnknownSession) {
			prometheus.RecordError("session_expired")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired", "redirect": h.signInPath})
		}
		log.Error("Failed to record activity", zap.Error(err))
		return respond(c, internal("activity_failed", "failed to record activity"))
	}
	prometheus.RecordActivityEvent(string(kind))

	if err := h.repo.TouchSession(c.Request().Context(), sessionID, h.now()); err != nil {
		log.Warn("Failed to update session activity time", zap.String("session_id", sessionID), zap.Error(err))
	}

	monitor, _ := h.sessions.Lookup(sessionID)
	response := echo.Map{"status": "active"}
	if monitor != nil {
		response["status"] = monitor.Status()
		response["expires_at"] = monitor.ExpiresAt()
	}
	return c.JSON(http.StatusOK, response)
}

// Notifications returns and clears the notifications waiting for the caller
func (h *Handler) Notifications(c echo.Context) error {
	notifications, redirect, _ := h.sessions.Drain(currentSessionID(c))
	if notifications == nil {
		notifications = []session.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"redirect":      redirect,
	})
}
