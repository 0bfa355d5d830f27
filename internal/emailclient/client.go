// Package emailclient sends transactional email through an HTTP JSON email
// API (Postmark-compatible wire format).
package emailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
)

// DefaultTimeout applies when the caller does not configure one.
const DefaultTimeout = 10 * time.Second

// Client posts messages to {baseURL}/email.
type Client struct {
	http               httpretry.HTTPDoer
	baseURL            string
	sender             domain.SubscriberEmail
	authorizationToken string
}

// New creates a client. If doer is nil a plain http.Client with
// DefaultTimeout is used.
func New(baseURL string, sender domain.SubscriberEmail, authorizationToken string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:               doer,
		baseURL:            strings.TrimRight(baseURL, "/"),
		sender:             sender,
		authorizationToken: authorizationToken,
	}
}

// SendEmailRequest is the JSON body accepted by the email API.
type SendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendEmail delivers one message. Any non-2xx response is an error.
func (c *Client) SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, textBody, htmlBody string) error {
	body, err := json.Marshal(SendEmailRequest{
		From:     c.sender.String(),
		To:       recipient.String(),
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.authorizationToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
