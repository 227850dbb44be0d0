package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoPhoneNumber       = errors.New("contact has no phone number for SMS")
	ErrNoWhatsAppNumber    = errors.New("contact has no WhatsApp number")
	ErrNoEmailAddress      = errors.New("contact has no email address")
	ErrUnsupportedChannel  = errors.New("unsupported channel")
	ErrForbidden           = errors.New("access denied")
	ErrBatchInProgress     = errors.New("scheduled batch already running")
	ErrSenderNotConfigured = errors.New("channel sender not configured")
)

// ValidationError reports a request that was rejected before any work began
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizationError reports a provider payload that cannot be mapped to an inbound event
type NormalizationError struct {
	Provider string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s payload: %s", e.Provider, e.Reason)
}

// IsMissingAddress reports whether err is one of the per-channel missing address errors
func IsMissingAddress(err error) bool {
	return errors.Is(err, ErrNoPhoneNumber) || errors.Is(err, ErrNoWhatsAppNumber) || errors.Is(err, ErrNoEmailAddress)
}
