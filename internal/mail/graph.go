// Package mail delivers messages through the Microsoft Graph sendMail API
// using client credential OAuth tokens.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNotConfigured indicates the Graph credentials are incomplete.
var ErrNotConfigured = errors.New("mail: graph credentials are not configured")

// tokenRefreshMargin renews the cached token slightly before its expiry so a
// send never races token expiration.
const tokenRefreshMargin = 30 * time.Second

// GraphConfig carries the Azure AD application credentials and the sender
// mailbox used for outgoing messages.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string

	// LoginBaseURL and GraphBaseURL override the Microsoft endpoints,
	// primarily for tests.
	LoginBaseURL string
	GraphBaseURL string

	HTTPClient *http.Client
	Now        func() time.Time
}

// Configured reports whether all required credential fields are present.
func (c GraphConfig) Configured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.Sender != ""
}

// GraphClient sends mail through Microsoft Graph on behalf of a fixed sender
// mailbox. It caches the app-only access token across sends.
type GraphClient struct {
	config     GraphConfig
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewGraphClient creates a GraphClient.
func NewGraphClient(config GraphConfig) *GraphClient {
	if config.LoginBaseURL == "" {
		config.LoginBaseURL = "https://login.microsoftonline.com"
	}
	if config.GraphBaseURL == "" {
		config.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &GraphClient{config: config, httpClient: httpClient, now: now}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid access token, fetching a fresh one when the cached
// token is missing or about to expire.
func (c *GraphClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Add(tokenRefreshMargin).Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
		"grant_type":    {"client_credentials"},
	}

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.config.LoginBaseURL, c.config.TenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request graph token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read graph token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("graph token request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode graph token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("graph token response missing access_token")
	}

	c.accessToken = token.AccessToken
	c.expiresAt = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type sendMailRequest struct {
	Message      graphMessage `json:"message"`
	SaveToFolder bool         `json:"saveToSentItems"`
}

type graphMessage struct {
	Subject      string           `json:"subject"`
	Body         graphBody        `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

// SendMail posts the message to the Graph sendMail endpoint of the
// configured sender mailbox.
func (c *GraphClient) SendMail(ctx context.Context, to []string, subject, html string) error {
	if !c.config.Configured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return errors.New("mail: no recipients")
	}

	accessToken, err := c.token(ctx)
	if err != nil {
		return err
	}

	recipients := make([]graphRecipient, 0, len(to))
	for _, address := range to {
		recipients = append(recipients, graphRecipient{
			EmailAddress: graphEmailAddress{Address: address},
		})
	}

	payload, err := json.Marshal(sendMailRequest{
		Message: graphMessage{
			Subject:      subject,
			Body:         graphBody{ContentType: "HTML", Content: html},
			ToRecipients: recipients,
		},
		SaveToFolder: true,
	})
	if err != nil {
		return err
	}

	sendURL := fmt.Sprintf("%s/users/%s/sendMail", c.config.GraphBaseURL, url.PathEscape(c.config.Sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("graph sendMail returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
