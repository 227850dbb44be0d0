package models

// Channel identifies the transport a conversation or message travels over
type Channel string

const (
	ChannelSMS       Channel = "SMS"
	ChannelWhatsApp  Channel = "WHATSAPP"
	ChannelEmail     Channel = "EMAIL"
	ChannelVoiceCall Channel = "VOICE_CALL"
)

// Valid reports whether c is one of the known channels
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail, ChannelVoiceCall:
		return true
	}
	return false
}

// Direction of a message relative to the inbox
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// MessageStatus constants
type MessageStatus string

const (
	MessageStatusScheduled MessageStatus = "SCHEDULED"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusFailed    MessageStatus = "FAILED"
)

// ConversationStatus constants
type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "ACTIVE"
	ConversationStatusArchived ConversationStatus = "ARCHIVED"
	ConversationStatusSnoozed  ConversationStatus = "SNOOZED"
)

// Valid reports whether s is a known conversation status
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusActive, ConversationStatusArchived, ConversationStatusSnoozed:
		return true
	}
	return false
}
