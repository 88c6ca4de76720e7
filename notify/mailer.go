package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/selfauth"
)

// DefaultEndpoint is the Resend email API.
const DefaultEndpoint = "https://api.resend.com/emails"

// MailerConfig configures an [HTTPMailer].
type MailerConfig struct {
	Endpoint string
	APIKey   string
	From     string
	// FrontendURL is the base for links in messages, e.g.
	// "https://app.example.com". Reset links point at /reset-password,
	// magic links at /magic-link.
	FrontendURL string
	// MagicLinkTTL is the validity stated in magic-link messages. It should
	// match the engine's MagicLink.TokenTTL; zero means 15 minutes.
	MagicLinkTTL time.Duration

	Subjects Subjects
	Client   *http.Client
}

// Subjects are the message subject lines.
type Subjects struct {
	Welcome       string
	PasswordReset string
	MagicLink     string
}

// HTTPMailer posts rendered HTML messages to a JSON mail API.
type HTTPMailer struct {
	cfg MailerConfig
}

var _ selfauth.Notifier = (*HTTPMailer)(nil)

// NewHTTPMailer validates cfg and fills defaults.
func NewHTTPMailer(cfg MailerConfig) (*HTTPMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mailer api key is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer from address is required")
	}
	if _, err := url.ParseRequestURI(cfg.FrontendURL); err != nil {
		return nil, fmt.Errorf("invalid frontend url: %w", err)
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Subjects.Welcome == "" {
		cfg.Subjects.Welcome = "Welcome"
	}
	if cfg.Subjects.PasswordReset == "" {
		cfg.Subjects.PasswordReset = "Reset your password"
	}
	if cfg.Subjects.MagicLink == "" {
		cfg.Subjects.MagicLink = "Your sign-in link"
	}
	return &HTTPMailer{cfg: cfg}, nil
}

func (m *HTTPMailer) link(path, token string) string {
	if token == "" {
		return m.cfg.FrontendURL + path
	}
	return m.cfg.FrontendURL + path + "?token=" + url.QueryEscape(token)
}

func (m *HTTPMailer) SendWelcome(ctx context.Context, email, name string) error {
	html, err := render(welcomeTemplate, messageData{Name: name, URL: m.link("/login", "")})
	if err != nil {
		return err
	}
	return m.send(ctx, email, m.cfg.Subjects.Welcome, html)
}

func (m *HTTPMailer) SendPasswordReset(ctx context.Context, email, token, name string) error {
	html, err := render(resetTemplate, messageData{
		Name:     name,
		URL:      m.link("/reset-password", token),
		Validity: validity(selfauth.ResetTokenTTL),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, email, m.cfg.Subjects.PasswordReset, html)
}

func (m *HTTPMailer) SendMagicLink(ctx context.Context, email, token, name string) error {
	html, err := render(magicLinkTemplate, messageData{
		Name:     name,
		URL:      m.link("/magic-link", token),
		Validity: validity(m.cfg.MagicLinkTTL),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, email, m.cfg.Subjects.MagicLink, html)
}

// validity renders d for message text, e.g. "1 hour" or "20 minutes".
func validity(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

type mailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *HTTPMailer) send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(mailRequest{From: m.cfg.From, To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("mail api request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
