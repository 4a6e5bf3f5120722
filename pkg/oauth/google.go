package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/suteetoe/strategy-service/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ErrEmailNotVerified is returned when Google reports an unverified address
var ErrEmailNotVerified = errors.New("google account email is not verified")

// UserInfo is the Google account profile
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Provider runs the authorization code flow of an identity provider
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*UserInfo, error)
}

// GoogleClient signs users in with their Google account
type GoogleClient struct {
	config      *oauth2.Config
	userInfoURL string
	logger      *zap.Logger
}

// NewGoogleClient creates a client for the configured Google application
func NewGoogleClient(cfg config.OAuthConfig, logger *zap.Logger) *GoogleClient {
	return newGoogleClient(cfg, endpoints.Google, googleUserInfoURL, logger)
}

func newGoogleClient(cfg config.OAuthConfig, endpoint oauth2.Endpoint, userInfoURL string, logger *zap.Logger) *GoogleClient {
	return &GoogleClient{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		logger:      logger,
	}
}

// AuthCodeURL returns the consent page URL carrying state
func (c *GoogleClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a token and fetches the profile
func (c *GoogleClient) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		c.logger.Error("OAuth code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.config.Client(ctx, token).Do(req)
	if err != nil {
		c.logger.Error("User info request failed", zap.Error(err))
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read user info: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("User info request returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, fmt.Errorf("fetch user info: %d %s", resp.StatusCode, string(body))
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if info.Email == "" || !info.VerifiedEmail {
		return nil, ErrEmailNotVerified
	}

	c.logger.Info("Google account resolved", zap.String("email", info.Email))
	return &info, nil
}
