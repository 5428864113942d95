package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrAuthExpired is returned when the provider rejects our token and
// recovery was not possible (or not permitted, see NO_AUTH).
var ErrAuthExpired = errors.New("authentication expired")

// Token is the persisted OAuth state.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoadToken reads the token file written by a previous authorization.
func LoadToken(path string) (*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := &Token{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("error parsing token file: %w", err)
	}
	return t, nil
}

func SaveToken(path string, t *Token) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// AuthURL returns the provider authorization page the user must visit.
func (c *Client) AuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("response_type", "code")
	params.Set("state", state)
	return c.cfg.AuthBaseURL + "/?" + params.Encode()
}

// ExchangeCode swaps the OAuth authorization code for tokens and persists
// them.
func (c *Client) ExchangeCode(code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("code", code)
	return c.requestToken(form)
}

// RefreshAccessToken trades the refresh token for a new access token.
func (c *Client) RefreshAccessToken() (*Token, error) {
	if c.token == nil || c.token.RefreshToken == "" {
		return nil, ErrAuthExpired
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", c.token.RefreshToken)
	return c.requestToken(form)
}

func (c *Client) requestToken(form url.Values) (*Token, error) {
	resp, err := c.http.Post(c.cfg.APIBaseURL+"/oauth2/token",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("error decoding token response: %w", err)
	}

	token := &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	c.token = token

	if c.cfg.TokenPath != "" {
		if err := SaveToken(c.cfg.TokenPath, token); err != nil {
			return nil, fmt.Errorf("error saving token: %w", err)
		}
	}
	return token, nil
}
