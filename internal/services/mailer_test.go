package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/unibox-backend/internal/config"
	"github.com/Ananth-NQI/unibox-backend/internal/logger"
	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

func TestMailerSend(t *testing.T) {
	var got mailerSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewMailerClient(config.EmailConfig{APIKey: "secret-key", APIURL: srv.URL, SenderName: "UniBox"}, logger.Discard())
	id, err := client.Send(context.Background(), Delivery{
		To:          "c@x.com",
		Content:     "line one\nline two",
		Attachments: []models.AttachmentInput{{Filename: "a.pdf", URL: "https://f/a.pdf"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "email_"))

	assert.Equal(t, []string{"c@x.com"}, got.Recipients)
	assert.Equal(t, defaultEmailSubject, got.MailSubject)
	assert.Equal(t, "UniBox", got.MailSenderName)
	assert.Contains(t, got.MailBody, "<p>line one<br>")
	assert.Contains(t, got.MailBody, `<a href="https://f/a.pdf">a.pdf</a>`)
}

func TestMailerSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewMailerClient(config.EmailConfig{APIKey: "k", APIURL: srv.URL}, logger.Discard())
	_, err := client.Send(context.Background(), Delivery{To: "c@x.com", Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = NewMailerClient(config.EmailConfig{}, logger.Discard()).Send(context.Background(), Delivery{To: "c@x.com"})
	assert.ErrorIs(t, err, ErrSenderNotConfigured)
}

func TestMailerFetchInboxAndContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fetch-emails":
			assert.Equal(t, "Archive", r.URL.Query().Get("folder"))
			w.Write([]byte(`{"data":{"emails":[{"uid":7,"messageId":"m-7","from":"a@b.com","to":["in@u.io"],"bodyText":"hello"}]}}`))
		case "/api/email/content":
			assert.Equal(t, "7", r.URL.Query().Get("uid"))
			w.Write([]byte(`{"data":{"uid":7,"bodyText":"full body"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	defer srv.Close()

	client := NewMailerClient(config.EmailConfig{APIKey: "k", InboundAPIURL: srv.URL + "/api/"}, logger.Discard())
	emails, err := client.FetchInbox(context.Background(), "Archive")
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, int64(7), emails[0].UID)
	assert.Equal(t, []string{"in@u.io"}, emails[0].To)

	full, err := client.FetchContent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "full body", full.BodyText)
}

type mockMailbox struct {
	mock.Mock
}

func (m *mockMailbox) FetchInbox(ctx context.Context, folder string) ([]InboxEmail, error) {
	args := m.Called(ctx, folder)
	emails, _ := args.Get(0).([]InboxEmail)
	return emails, args.Error(1)
}

func (m *mockMailbox) FetchContent(ctx context.Context, uid int64) (*InboxEmail, error) {
	args := m.Called(ctx, uid)
	email, _ := args.Get(0).(*InboxEmail)
	return email, args.Error(1)
}

func TestEmailSync(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	box := &mockMailbox{}
	sync := NewEmailSyncService(box, env.inbound, env.ledger, logger.Discard())

	date := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	box.On("FetchInbox", mock.Anything, "INBOX").Return([]InboxEmail{
		{UID: 1, MessageID: "m-1", From: "Kim <kim@x.com>", To: []string{"in@u.io"}, Subject: "Quote", Date: date, BodyText: "Need a quote"},
		{UID: 2, MessageID: "m-2", From: "lee@x.com", Date: date, BodyText: bodyPlaceholder},
		{UID: 3, MessageID: "m-3", From: "broken", Date: date, BodyText: "x"},
	}, nil)
	box.On("FetchContent", mock.Anything, int64(2)).Return(&InboxEmail{UID: 2, BodyHTML: "<p>fetched</p>"}, nil).Once()

	res, err := sync.Sync(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalEmails)
	assert.Equal(t, 2, res.ProcessedCount)
	assert.Equal(t, "Need a quote", res.Messages[0].Content)
	assert.Equal(t, "<p>fetched</p>", res.Messages[1].Content)
	assert.Equal(t, "Quote", res.Messages[0].Metadata["subject"])

	// Already imported emails are skipped on the next run.
	res, err = sync.Sync(ctx, "INBOX")
	require.NoError(t, err)
	assert.Zero(t, res.ProcessedCount)
	box.AssertExpectations(t)
}
