package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"potwatch/internal/config"
)

const (
	maxRetries = 3
	retryDelay = 3 * time.Second

	// reauthPollInterval paces the wait for a fresh token file during
	// notification-driven re-authentication.
	reauthPollInterval = 5 * time.Second
	reauthPollTimeout  = 5 * time.Minute
)

// Notifier is the push channel used to ask for re-authentication when no
// terminal is attached.
type Notifier interface {
	Notify(title, message string)
}

// Client talks to the banking provider's REST API.
type Client struct {
	cfg         config.ProviderConfig
	http        *http.Client
	logger      *zap.Logger
	token       *Token
	notifier    Notifier
	interactive bool
}

func NewClient(cfg config.ProviderConfig, logger *zap.Logger, notifier Notifier, interactive bool) (*Client, error) {
	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
		notifier:    notifier,
		interactive: interactive,
	}
	if cfg.TokenPath != "" {
		token, err := LoadToken(cfg.TokenPath)
		if err == nil {
			c.token = token
		}
	}
	return c, nil
}

// Account is a provider account as returned by the API.
type Account struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Closed      bool   `json:"closed"`
	SortCode    string `json:"sort_code"`
	AccountNo   string `json:"account_number"`
}

// Balance holds minor-unit balances for one account.
type Balance struct {
	Balance      int64  `json:"balance"`
	TotalBalance int64  `json:"total_balance"`
	Currency     string `json:"currency"`
}

// Pot is a provider pot row.
type Pot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Deleted bool   `json:"deleted"`
}

// Merchant is the expanded merchant block on a transaction.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is a provider transaction; amounts are minor units, money
// out negative.
type Transaction struct {
	ID            string            `json:"id"`
	Created       time.Time         `json:"created"`
	Description   string            `json:"description"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	LocalAmount   int64             `json:"local_amount"`
	LocalCurrency string            `json:"local_currency"`
	Notes         string            `json:"notes"`
	Settled       string            `json:"settled"`
	DeclineReason string            `json:"decline_reason"`
	Scheme        string            `json:"scheme"`
	Metadata      map[string]string `json:"metadata"`
	Merchant      *Merchant         `json:"merchant"`
}

func (c *Client) Accounts() ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	err := c.get("/accounts", nil, &out)
	return out.Accounts, err
}

func (c *Client) Balance(accountID string) (*Balance, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	out := &Balance{}
	err := c.get("/balance", params, out)
	return out, err
}

func (c *Client) Pots(accountID string) ([]Pot, error) {
	params := url.Values{}
	params.Set("current_account_id", accountID)
	var out struct {
		Pots []Pot `json:"pots"`
	}
	err := c.get("/pots", params, &out)
	return out.Pots, err
}

func (c *Client) Transactions(accountID string, since time.Time) ([]Transaction, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	params.Set("expand[]", "merchant")
	if !since.IsZero() {
		params.Set("since", since.Format(time.RFC3339))
	}
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	err := c.get("/transactions", params, &out)
	return out.Transactions, err
}

// DepositToPot moves money from the account into a pot. The amount is in
// major units. Returns false after exhausting retries; never fatal.
func (c *Client) DepositToPot(accountID, potID string, amount float64) bool {
	form := url.Values{}
	form.Set("source_account_id", accountID)
	form.Set("amount", strconv.FormatInt(int64(math.Round(amount*100)), 10))
	form.Set("dedupe_id", dedupeID(potID))
	return c.moveMoney("/pots/"+potID+"/deposit", form)
}

// WithdrawFromPot moves money from a pot back into the account.
func (c *Client) WithdrawFromPot(accountID, potID string, amount float64) bool {
	form := url.Values{}
	form.Set("destination_account_id", accountID)
	form.Set("amount", strconv.FormatInt(int64(math.Round(amount*100)), 10))
	form.Set("dedupe_id", dedupeID(potID))
	return c.moveMoney("/pots/"+potID+"/withdraw", form)
}

// dedupeID keys a transfer to the pot and the current hour, so repeated
// calls within the same hour are idempotent at the provider.
func dedupeID(potID string) string {
	return fmt.Sprintf("%s_%d", potID, time.Now().Truncate(time.Hour).Unix())
}

func (c *Client) moveMoney(path string, form url.Values) bool {
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		err := c.doPut(path, form)
		if err == nil {
			return true
		}
		c.logger.Warn("pot transfer attempt failed",
			zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return false
}

// get runs a read call with fixed-delay retries. An authentication error
// triggers exactly one re-authentication attempt; a second failure is
// returned to the caller as fatal.
func (c *Client) get(path string, params url.Values, out interface{}) error {
	reauthed := false
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		err := c.doGet(path, params, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAuthExpired) {
			if reauthed {
				return err
			}
			if rerr := c.reauthenticate(); rerr != nil {
				return rerr
			}
			reauthed = true
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) doGet(path string, params url.Values, out interface{}) error {
	u := c.cfg.APIBaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doPut(path string, form url.Values) error {
	req, err := http.NewRequest(http.MethodPut, c.cfg.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("PUT %s returned %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != nil {
		req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	}
}

// reauthenticate recovers from an expired token: refresh first, then
// either prompt (TTY) or notify-and-poll for a token file written by the
// OAuth callback. NO_AUTH marks a batch context where neither is possible.
func (c *Client) reauthenticate() error {
	if os.Getenv("NO_AUTH") != "" {
		return ErrAuthExpired
	}

	if _, err := c.RefreshAccessToken(); err == nil {
		c.logger.Info("access token refreshed")
		return nil
	}

	authURL := c.AuthURL("potwatch")
	if c.interactive {
		fmt.Printf("Authentication required. Visit:\n\n  %s\n\nWaiting for authorization...\n", authURL)
	} else if c.notifier != nil {
		c.notifier.Notify("Re-authentication required", authURL)
	} else {
		return ErrAuthExpired
	}

	return c.pollForToken()
}

// pollForToken waits for the OAuth callback (or the user) to write a fresh
// token file.
func (c *Client) pollForToken() error {
	var before time.Time
	if info, err := os.Stat(c.cfg.TokenPath); err == nil {
		before = info.ModTime()
	}

	deadline := time.Now().Add(reauthPollTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(reauthPollInterval)
		info, err := os.Stat(c.cfg.TokenPath)
		if err != nil || !info.ModTime().After(before) {
			continue
		}
		token, err := LoadToken(c.cfg.TokenPath)
		if err != nil {
			continue
		}
		c.token = token
		c.logger.Info("re-authentication complete")
		return nil
	}
	return ErrAuthExpired
}
