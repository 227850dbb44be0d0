package utils

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const whatsappPrefix = "whatsapp:"

// HasWhatsAppPrefix reports whether a Twilio address carries the whatsapp: scheme
func HasWhatsAppPrefix(addr string) bool {
	return strings.HasPrefix(addr, whatsappPrefix)
}

// StripWhatsAppPrefix removes the whatsapp: scheme Twilio puts on WhatsApp addresses
func StripWhatsAppPrefix(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), whatsappPrefix)
}

// WhatsAppAddress formats a number the way Twilio expects for WhatsApp:
// international format with a leading + and the whatsapp: scheme.
func WhatsAppAddress(number string) string {
	n := StripWhatsAppPrefix(number)
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return whatsappPrefix + n
}

// NormalizeEmailAddress accepts "Name <addr>" or a bare address and returns
// the lower-cased address
func NormalizeEmailAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty email address")
	}
	parsed, err := mail.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("invalid email address %q: %w", raw, err)
	}
	return strings.ToLower(parsed.Address), nil
}

// EmailDisplayName derives a provisional name from the local part:
// "john.doe_smith@x.com" becomes "John Doe Smith".
func EmailDisplayName(addr string) string {
	local := addr
	if i := strings.Index(addr, "@"); i >= 0 {
		local = addr[:i]
	}
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return addr
	}
	return strings.Join(words, " ")
}

// PhoneDisplayName derives a provisional name from the last four digits
func PhoneDisplayName(phone string) string {
	var digits []rune
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return "Contact"
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return "Contact " + string(digits)
}
