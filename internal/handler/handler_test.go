package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/strategy-service/internal/middleware"
	"github.com/suteetoe/strategy-service/internal/repository"
	"github.com/suteetoe/strategy-service/internal/session"
	"github.com/suteetoe/strategy-service/internal/suggestion"
	"github.com/suteetoe/strategy-service/pkg/config"
	"github.com/suteetoe/strategy-service/pkg/jwtutil"
	"github.com/suteetoe/strategy-service/pkg/oauth"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasPending := !t.stopped
	t.stopped = true
	return wasPending
}

// manualClock fires its timers only when told to
type manualClock struct {
	mu      sync.Mutex
	pending []*manualTimer
}

func (c *manualClock) Now() time.Time { return time.Unix(0, 0) }

func (c *manualClock) AfterFunc(d time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.pending = append(c.pending, t)
	return t
}

// fire runs every timer armed so far
func (c *manualClock) fire() {
	c.mu.Lock()
	timers := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.f()
		}
	}
}

type fakeProvider struct {
	info *oauth.UserInfo
	err  error
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/consent?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth.UserInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.info, nil
}

type fixture struct {
	t        *testing.T
	repo     *memRepo
	clock    *manualClock
	sessions *session.Registry
	echo     *echo.Echo
}

func newFixture(t *testing.T, provider oauth.Provider) *fixture {
	t.Helper()

	engine, err := suggestion.Load("")
	require.NoError(t, err)

	f := &fixture{
		t:     t,
		repo:  newMemRepo(),
		clock: &manualClock{},
	}
	f.sessions = session.NewRegistry(repository.NewSessionStore(f.repo, 0), session.RegistryConfig{
		Clock: f.clock,
	})
	jwt := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	h := New(Deps{
		ServiceName: "strategy-service",
		Repo:        f.repo,
		JWT:         jwt,
		Sessions:    f.sessions,
		Suggestions: engine,
		OAuth:       provider,
	})

	f.echo = echo.New()
	f.echo.Validator = middleware.NewRequestValidator()
	h.RegisterRoutes(f.echo, middleware.NewAuthenticator(jwt, f.sessions, "/auth").Middleware)
	return f
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// user is a signed-in account
type user struct {
	id        uint
	token     string
	sessionID string
}

func (f *fixture) signUp(email string) user {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "full_name": "Test User",
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(f.t, rec)
	u := body["user"].(map[string]interface{})
	return user{
		id:        uint(u["id"].(float64)),
		token:     body["token"].(string),
		sessionID: body["session_id"].(string),
	}
}

// createOrganization returns the id of a new organization owned by u
func (f *fixture) createOrganization(u user, name string) uint {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/organizations", u.token, map[string]string{"name": name})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(decode(f.t, rec)["id"].(float64))
}

func (f *fixture) createArea(u user, organizationID uint, name string) uint {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/areas", u.token, map[string]interface{}{
		"organization_id": organizationID,
		"name":            name,
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(decode(f.t, rec)["id"].(float64))
}

func (f *fixture) createObjective(u user, organizationID uint, title string) uint {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/objectives", u.token, map[string]interface{}{
		"organization_id": organizationID,
		"title":           title,
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(decode(f.t, rec)["id"].(float64))
}

func (f *fixture) createInitiative(u user, objectiveID uint, title string) uint {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/initiatives", u.token, map[string]interface{}{
		"objective_id": objectiveID,
		"title":        title,
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(decode(f.t, rec)["id"].(float64))
}

func path(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func serve(f *fixture, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec.Result()
}
