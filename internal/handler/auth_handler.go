package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/pkg/logger"
	"github.com/suteetoe/strategy-service/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const oauthStateCookie = "oauth_state"

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"max=150"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates an email/password account
func (h *Handler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req registerRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	ctx := c.Request().Context()
	if _, err := h.repo.FindUserByEmail(ctx, req.Email); err == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		prometheus.RecordError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.Error("Failed to look up user", zap.Error(err))
		return respond(c, internal("db_error", "registration failed"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return respond(c, internal("password_hash_failed", "registration failed"))
	}

	user := model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
		Provider: model.ProviderEmail,
	}
	profile := model.Profile{FullName: req.FullName}

	if err := h.repo.CreateUser(ctx, &user, &profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			prometheus.RecordError("email_already_exists")
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Error("Failed to create user", zap.Error(err))
		return respond(c, internal("user_creation_failed", "registration failed"))
	}

	log.Info("User registered", zap.String("email", user.Email), zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": profile.FullName,
		},
	})
}

// Login signs in with email and password and opens a session
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordLogin(model.ProviderEmail)

	var req loginRequest
	if aerr := bind(c, &req); aerr != nil {
		return respond(c, aerr)
	}

	user, err := h.repo.FindUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
			return respond(c, internal("db_error", "login failed"))
		}
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	return h.openSession(c, user, model.ProviderEmail)
}

// GoogleLogin redirects to the Google consent page
func (h *Handler) GoogleLogin(c echo.Context) error {
	if h.oauth == nil {
		return respond(c, notFound("oauth_disabled", "google sign-in is not configured"))
	}

	state := uuid.New().String()
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// GoogleCallback completes Google sign-in, creating the account on first use
func (h *Handler) GoogleCallback(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordLogin(model.ProviderGoogle)

	if h.oauth == nil {
		return respond(c, notFound("oauth_disabled", "google sign-in is not configured"))
	}

	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		log.Warn("OAuth state mismatch")
		return respond(c, badRequest("invalid_oauth_state", "invalid oauth state"))
	}
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})

	if errParam := c.QueryParam("error"); errParam != "" {
		log.Warn("Google sign-in was denied", zap.String("error", errParam))
		prometheus.RecordError("oauth_denied")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in was cancelled"})
	}
	code := c.QueryParam("code")
	if code == "" {
		return respond(c, badRequest("missing_oauth_code", "code is required"))
	}

	ctx := c.Request().Context()
	info, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Warn("Google sign-in failed", zap.Error(err))
		prometheus.RecordError("oauth_exchange_failed")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in failed"})
	}

	user, err := h.repo.FindUserByEmail(ctx, info.Email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &model.User{Email: info.Email, Provider: model.ProviderGoogle}
		profile := &model.Profile{FullName: info.Name, AvatarURL: info.Picture}
		err = h.repo.CreateUser(ctx, user, profile)
		if err == nil {
			log.Info("User registered through Google", zap.String("email", user.Email))
		}
	}
	if err != nil {
		log.Error("Failed to resolve Google user", zap.Error(err))
		return respond(c, internal("user_creation_failed", "sign-in failed"))
	}

	return h.openSession(c, user, model.ProviderGoogle)
}

// openSession records a new session, starts its idle monitor and returns the token
func (h *Handler) openSession(c echo.Context, user *model.User, provider string) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	now := h.now()
	record := model.Session{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       provider,
		LastActivityAt: now,
	}
	if err := h.repo.CreateSession(ctx, &record); err != nil {
		log.Error("Failed to create session", zap.Error(err))
		return respond(c, internal("session_creation_failed", "sign-in failed"))
	}

	token, err := h.jwt.GenerateToken(user.Email, user.ID, record.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		// the caller never receives a token for this session
		if err := h.repo.EndSession(ctx, record.ID, string(session.ReasonSignedOut), h.now()); err != nil {
			log.Error("Failed to end session after token error", zap.String("session_id", record.ID), zap.Error(err))
		}
		return respond(c, internal("token_generation_failed", "token error"))
	}

	monitor := h.sessions.Open(session.Info{SessionID: record.ID, UserID: user.ID, Email: user.Email})

	var fullName string
	if profile, err := h.repo.FindProfile(ctx, user.ID); err == nil {
		fullName = profile.FullName
	}

	log.Info("User signed in",
		zap.String("email", user.Email),
		zap.String("provider", provider),
		zap.String("session_id", record.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"token":                token,
		"session_id":           record.ID,
		"expires_at":           monitor.ExpiresAt(),
		"idle_timeout_seconds": int(h.idleTimeout.Seconds()),
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": fullName,
			"provider":  user.Provider,
		},
	})
}

// Logout ends the caller's session
func (h *Handler) Logout(c echo.Context) error {
	log := logger.FromContext(c)
	sessionID := currentSessionID(c)

	notifications, redirect, err := h.sessions.SignOut(c.Request().Context(), sessionID)
	if errors.Is(err, session.ErrUnknownSession) {
		return respond(c, unauthenticated())
	}
	if notifications == nil {
		notifications = []session.Notification{}
	}
	if err != nil {
		log.Error("Sign-out failed", zap.String("session_id", sessionID), zap.Error(err))
		prometheus.RecordError("sign_out_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":         "sign-out failed",
			"notifications": notifications,
		})
	}

	log.Info("User signed out", zap.String("session_id", sessionID))
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "Signed out",
		"redirect":      redirect,
		"notifications": notifications,
	})
}

// GetProfile returns the caller's account and profile
func (h *Handler) GetProfile(c echo.Context) error {
	log := logger.FromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return respond(c, unauthenticated())
	}

	ctx := c.Request().Context()
	user, err := h.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respond(c, notFound("user_not_found", "user not found"))
		}
		log.Error("Failed to load user", zap.Error(err))
		return respond(c, internal("db_error", "failed to load profile"))
	}

	profile, err := h.repo.FindProfile(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("Failed to load profile", zap.Error(err))
		return respond(c, internal("db_error", "failed to load profile"))
	}
	if profile == nil {
		profile = &model.Profile{UserID: userID}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":         user.ID,
		"email":      user.Email,
		"provider":   user.Provider,
		"full_name":  profile.FullName,
		"avatar_url": profile.AvatarURL,
		"created_at": user.CreatedAt,
	})
}
