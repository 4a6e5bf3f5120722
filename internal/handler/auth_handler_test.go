package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/strategy-service/internal/middleware"
	"github.com/suteetoe/strategy-service/internal/model"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/pkg/jwtutil"
	"github.com/suteetoe/strategy-service/pkg/oauth"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "secret123", "full_name": "Ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, "ana@example.com", registered["email"])
	assert.Equal(t, "Ana", registered["full_name"])

	rec = f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, float64(1800), body["idle_timeout_seconds"])
	u := body["user"].(map[string]interface{})
	assert.Equal(t, "Ana", u["full_name"])
	assert.Equal(t, model.ProviderEmail, u["provider"])

	sessionID := body["session_id"].(string)
	assert.True(t, f.repo.session(sessionID).EndedAt == nil)
	monitor, ok := f.sessions.Lookup(sessionID)
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", monitor.Info().Email)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.signUp("ana@example.com")

	rec := f.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ana@example.com", "password": "another1",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", decode(t, rec)["error"])
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, nil)

	cases := []struct {
		body    map[string]string
		message string
	}{
		{map[string]string{"password": "secret123"}, "email is required"},
		{map[string]string{"email": "not-an-email", "password": "secret123"}, "email must be a valid email address"},
		{map[string]string{"email": "ana@example.com", "password": "123"}, "password must be at least 6 characters"},
	}
	for _, tc := range cases {
		rec := f.do(http.MethodPost, "/auth/register", "", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, tc.message, decode(t, rec)["error"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t, nil)
	f.signUp("ana@example.com")

	rec := f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decode(t, rec)["error"])
}

func TestLoginEndsSessionWhenTokenFails(t *testing.T) {
	f := newFixture(t, nil)
	f.signUp("ana@example.com")
	signedIn := len(f.repo.sessions)

	// a signer without configuration cannot issue tokens
	broken := jwtutil.NewJWTUtil(nil)
	h := New(Deps{ServiceName: "strategy-service", Repo: f.repo, JWT: broken, Sessions: f.sessions})
	f.echo = echo.New()
	f.echo.Validator = middleware.NewRequestValidator()
	h.RegisterRoutes(f.echo, middleware.NewAuthenticator(broken, f.sessions, "/auth").Middleware)

	rec := f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "secret123",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, "token error", decode(t, rec)["error"])
	require.Len(t, f.repo.sessions, signedIn+1)
	ended := 0
	for _, s := range f.repo.sessions {
		_, tracked := f.sessions.Lookup(s.ID)
		if s.EndedAt == nil {
			assert.True(t, tracked, "session %s is live but has no token", s.ID)
			continue
		}
		ended++
		assert.Equal(t, string(session.ReasonSignedOut), s.EndReason)
		assert.False(t, tracked)
	}
	assert.Equal(t, 1, ended)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestLoginRejectsGoogleOnlyAccount(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.repo.CreateUser(context.Background(),
		&model.User{Email: "g@example.com", Provider: model.ProviderGoogle}, &model.Profile{}))

	rec := f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "g@example.com", "password": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "g@example.com", "password": "anything",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	f := newFixture(t, nil)
	u := f.signUp("ana@example.com")

	rec := f.do(http.MethodPost, "/auth/logout", u.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "Signed out", body["message"])
	assert.Equal(t, "/auth", body["redirect"])
	notifications := body["notifications"].([]interface{})
	require.Len(t, notifications, 1)
	assert.Equal(t, "Signed out", notifications[0].(map[string]interface{})["title"])

	record := f.repo.session(u.sessionID)
	require.NotNil(t, record.EndedAt)
	assert.Equal(t, string(session.ReasonSignedOut), record.EndReason)
	assert.Equal(t, 0, f.sessions.Len())

	// the token outlives the session but no longer opens the API
	rec = f.do(http.MethodGet, "/api/session", u.token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "session expired", decode(t, rec)["error"])
}

func TestLogoutRequiresToken(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t, nil)
	u := f.signUp("ana@example.com")

	rec := f.do(http.MethodGet, "/api/users/profile", u.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Contains(t, rec.Body.String(), "ana@example.com")
	assert.NotContains(t, body, "password")
}

func TestGoogleLoginDisabled(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoogleLoginRedirectsWithState(t *testing.T) {
	f := newFixture(t, &fakeProvider{})

	rec := f.do(http.MethodGet, "/auth/google", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, oauthStateCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, cookies[0].Value, location.Query().Get("state"))
}

func googleCallback(f *fixture, query string, state string) *http.Response {
	req := newRequest(http.MethodGet, "/auth/callback?"+query)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state})
	}
	return serve(f, req)
}

func TestGoogleCallbackCreatesUserAndSession(t *testing.T) {
	provider := &fakeProvider{info: &oauth.UserInfo{
		Email: "g@example.com", VerifiedEmail: true, Name: "Gee", Picture: "https://img/g.png",
	}}
	f := newFixture(t, provider)

	res := googleCallback(f, "code=abc&state=s1", "s1")
	require.Equal(t, http.StatusOK, res.StatusCode)

	created, err := f.repo.FindUserByEmail(context.Background(), "g@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.ProviderGoogle, created.Provider)
	assert.Empty(t, created.Password)
	profile, err := f.repo.FindProfile(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gee", profile.FullName)
	assert.Equal(t, 1, f.sessions.Len())

	// second sign-in reuses the account
	res = googleCallback(f, "code=abc&state=s2", "s2")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 2, f.sessions.Len())
	assert.Len(t, f.repo.users, 1)
}

func TestGoogleCallbackFailures(t *testing.T) {
	provider := &fakeProvider{err: errors.New("exchange failed")}
	f := newFixture(t, provider)

	assert.Equal(t, http.StatusBadRequest, googleCallback(f, "code=abc&state=s1", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, googleCallback(f, "code=abc&state=s1", "other").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, googleCallback(f, "error=access_denied&state=s1", "s1").StatusCode)
	assert.Equal(t, http.StatusBadRequest, googleCallback(f, "state=s1", "s1").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, googleCallback(f, "code=abc&state=s1", "s1").StatusCode)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/organizations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/organizations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}
