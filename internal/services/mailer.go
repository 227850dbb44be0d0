package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
)

// bodyPlaceholder is what the inbox listing returns when the body must be fetched separately
const bodyPlaceholder = "Body content available - use specific email fetch endpoint"

// MailerClient talks to the HTTP mailer service: it sends email and exposes
// the shared inbox for sync.
type MailerClient struct {
	apiKey     string
	sendURL    string
	inboundURL string
	senderName string
	http       *http.Client
	logger     *slog.Logger
}

func NewMailerClient(cfg config.EmailConfig, logger *slog.Logger) *MailerClient {
	return &MailerClient{
		apiKey:     cfg.APIKey,
		sendURL:    cfg.APIURL,
		inboundURL: strings.TrimRight(cfg.InboundAPIURL, "/"),
		senderName: cfg.SenderName,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type mailerSendRequest struct {
	Recipients     []string `json:"recipients"`
	MailSubject    string   `json:"mailSubject"`
	MailBody       string   `json:"mailBody"`
	MailSenderName string   `json:"mailSenderName"`
}

// Send implements ChannelSender. The mailer returns no message id, so one is generated.
func (c *MailerClient) Send(ctx context.Context, d Delivery) (string, error) {
	if c.sendURL == "" || c.apiKey == "" {
		return "", fmt.Errorf("mailer api: %w", ErrSenderNotConfigured)
	}
	payload, err := json.Marshal(mailerSendRequest{
		Recipients:     []string{d.To},
		MailSubject:    emailSubject(d.Subject),
		MailBody:       renderEmailHTML(d.Content, d.Attachments),
		MailSenderName: c.senderName,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("mailer api: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("email API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	id := "email_" + uuid.NewString()
	c.logger.Info("email sent", "to", d.To, "external_id", id)
	return id, nil
}

type mailerEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// FetchInbox lists the emails in folder
func (c *MailerClient) FetchInbox(ctx context.Context, folder string) ([]InboxEmail, error) {
	q := url.Values{"folder": {folder}}
	var data struct {
		Emails []InboxEmail `json:"emails"`
	}
	if err := c.getJSON(ctx, "/fetch-emails?"+q.Encode(), &data); err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}
	return data.Emails, nil
}

// FetchContent loads one email with its full body
func (c *MailerClient) FetchContent(ctx context.Context, uid int64) (*InboxEmail, error) {
	q := url.Values{"uid": {strconv.FormatInt(uid, 10)}}
	var email InboxEmail
	if err := c.getJSON(ctx, "/email/content?"+q.Encode(), &email); err != nil {
		return nil, fmt.Errorf("fetch email %d: %w", uid, err)
	}
	return &email, nil
}

func (c *MailerClient) getJSON(ctx context.Context, path string, out interface{}) error {
	if c.inboundURL == "" {
		return fmt.Errorf("mailer inbound api: %w", ErrSenderNotConfigured)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.inboundURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env mailerEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mailer api error: %d - %s", resp.StatusCode, env.Message)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
