package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/utils"
)

// InboundEvent is the provider-independent shape of one received message
type InboundEvent struct {
	From        string
	To          string
	Content     string
	Channel     models.Channel
	ExternalID  string
	Timestamp   time.Time
	Subject     string
	Metadata    map[string]interface{}
	Attachments []models.AttachmentInput
}

// twilioMetadataFields maps optional Twilio form fields onto metadata keys
var twilioMetadataFields = []struct{ param, key string }{
	{"AccountSid", "accountSid"},
	{"MessagingServiceSid", "messagingServiceSid"},
	{"NumSegments", "numSegments"},
	{"FromCity", "fromCity"},
	{"FromState", "fromState"},
	{"FromZip", "fromZip"},
	{"FromCountry", "fromCountry"},
	{"ToCity", "toCity"},
	{"ToState", "toState"},
	{"ToZip", "toZip"},
	{"ToCountry", "toCountry"},
	{"ProfileName", "profileName"},
	{"WaId", "waId"},
	{"ButtonText", "buttonText"},
	{"Latitude", "latitude"},
	{"Longitude", "longitude"},
	{"Address", "address"},
	{"Label", "label"},
	{"OriginalRepliedMessageSender", "originalRepliedMessageSender"},
	{"OriginalRepliedMessageSid", "originalRepliedMessageSid"},
}

var twilioReferralFields = []struct{ param, key string }{
	{"ReferralBody", "body"},
	{"ReferralHeadline", "headline"},
	{"ReferralSourceId", "sourceId"},
	{"ReferralSourceType", "sourceType"},
	{"ReferralSourceUrl", "sourceUrl"},
	{"ReferralMediaId", "mediaId"},
	{"ReferralMediaContentType", "mediaContentType"},
	{"ReferralMediaUrl", "mediaUrl"},
	{"ReferralNumMedia", "numMedia"},
	{"ReferralCtwaClid", "ctwaClid"},
}

// NormalizeTwilio maps Twilio's form-encoded SMS/WhatsApp webhook onto an
// InboundEvent. Twilio does not send an event time, so receivedAt is used.
func NormalizeTwilio(params map[string]string, receivedAt time.Time) (*InboundEvent, error) {
	rawFrom := strings.TrimSpace(params["From"])
	if rawFrom == "" {
		return nil, &NormalizationError{Provider: "twilio", Reason: "missing From"}
	}

	channel := models.ChannelSMS
	if utils.HasWhatsAppPrefix(rawFrom) {
		channel = models.ChannelWhatsApp
	}
	from := utils.StripWhatsAppPrefix(rawFrom)
	if from == "" {
		return nil, &NormalizationError{Provider: "twilio", Reason: "empty From address"}
	}

	sid := params["MessageSid"]
	if sid == "" {
		sid = params["SmsMessageSid"]
	}

	evt := &InboundEvent{
		From:       from,
		To:         utils.StripWhatsAppPrefix(params["To"]),
		Content:    params["Body"],
		Channel:    channel,
		ExternalID: sid,
		Timestamp:  receivedAt,
		Metadata:   twilioMetadata(params),
	}

	numMedia, err := strconv.Atoi(strings.TrimSpace(params["NumMedia"]))
	if err != nil {
		numMedia = 0
	}
	for i := 0; i < numMedia; i++ {
		url := params[fmt.Sprintf("MediaUrl%d", i)]
		contentType := params[fmt.Sprintf("MediaContentType%d", i)]
		if url == "" || contentType == "" {
			continue
		}
		evt.Attachments = append(evt.Attachments, models.AttachmentInput{
			Filename:    fmt.Sprintf("media_%s_%d", sid, i),
			URL:         url,
			ContentType: contentType,
			Size:        0,
		})
	}
	return evt, nil
}

func twilioMetadata(params map[string]string) map[string]interface{} {
	meta := make(map[string]interface{})
	for _, f := range twilioMetadataFields {
		if v := params[f.param]; v != "" {
			meta[f.key] = v
		}
	}
	if v, ok := params["Forwarded"]; ok {
		meta["forwarded"] = v == "true"
	}
	if v, ok := params["FrequentlyForwarded"]; ok {
		meta["frequentlyForwarded"] = v == "true"
	}
	if params["ReferralBody"] != "" {
		referral := make(map[string]interface{})
		for _, f := range twilioReferralFields {
			if v := params[f.param]; v != "" {
				referral[f.key] = v
			}
		}
		meta["referral"] = referral
	}
	return meta
}

// EmailWebhookPayload is the JSON body posted by the email provider
type EmailWebhookPayload struct {
	MessageID   string                   `json:"messageId"`
	From        string                   `json:"from"`
	To          string                   `json:"to"`
	Subject     string                   `json:"subject"`
	Content     string                   `json:"content"`
	Timestamp   string                   `json:"timestamp"`
	Attachments []models.AttachmentInput `json:"attachments"`
}

// NormalizeEmail maps an email webhook payload onto an InboundEvent
func NormalizeEmail(p EmailWebhookPayload, receivedAt time.Time) (*InboundEvent, error) {
	from, err := utils.NormalizeEmailAddress(p.From)
	if err != nil {
		return nil, &NormalizationError{Provider: "email", Reason: err.Error()}
	}

	ts := receivedAt
	if strings.TrimSpace(p.Timestamp) != "" {
		ts, err = parseTimestamp(p.Timestamp)
		if err != nil {
			return nil, &NormalizationError{Provider: "email", Reason: fmt.Sprintf("invalid timestamp %q", p.Timestamp)}
		}
	}

	return &InboundEvent{
		From:        from,
		To:          p.To,
		Content:     p.Content,
		Channel:     models.ChannelEmail,
		ExternalID:  p.MessageID,
		Timestamp:   ts,
		Subject:     p.Subject,
		Attachments: p.Attachments,
	}, nil
}

// InboxEmail is one entry from the mailer's inbox listing
type InboxEmail struct {
	UID         int64                    `json:"uid"`
	MessageID   string                   `json:"messageId"`
	From        string                   `json:"from"`
	To          []string                 `json:"to"`
	Cc          []string                 `json:"cc"`
	Subject     string                   `json:"subject"`
	Date        string                   `json:"date"`
	Flags       []string                 `json:"flags"`
	Size        int64                    `json:"size"`
	Folder      string                   `json:"folder"`
	Attachments []models.AttachmentInput `json:"attachments"`
	BodyText    string                   `json:"bodyText"`
	BodyHTML    string                   `json:"bodyHtml"`
}

// NormalizeInboxEmail maps a synced mailbox entry onto an InboundEvent
func NormalizeInboxEmail(e InboxEmail, receivedAt time.Time) (*InboundEvent, error) {
	content := e.BodyText
	if content == "" {
		content = e.BodyHTML
	}
	if content == "" {
		content = "No content available"
	}
	var to string
	if len(e.To) > 0 {
		to = e.To[0]
	}

	evt, err := NormalizeEmail(EmailWebhookPayload{
		MessageID:   e.MessageID,
		From:        e.From,
		To:          to,
		Subject:     e.Subject,
		Content:     content,
		Timestamp:   e.Date,
		Attachments: e.Attachments,
	}, receivedAt)
	if err != nil {
		return nil, err
	}
	evt.Metadata = map[string]interface{}{
		"uid":    e.UID,
		"folder": e.Folder,
		"size":   e.Size,
	}
	if len(e.Cc) > 0 {
		evt.Metadata["cc"] = e.Cc
	}
	if len(e.Flags) > 0 {
		evt.Metadata["flags"] = e.Flags
	}
	return evt, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC1123Z, time.RFC1123, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
