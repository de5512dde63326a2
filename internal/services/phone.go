package services

import (
	"os"
	"strings"
)

// DefaultCountryCode returns the country code prepended to short national
// numbers. Defaults to Brazil (55); override with DEFAULT_COUNTRY_CODE.
func DefaultCountryCode() string {
	if code := os.Getenv("DEFAULT_COUNTRY_CODE"); code != "" {
		return code
	}
	return "55"
}

// StripJID removes the WhatsApp JID suffix from a remote identifier.
// "5511999999999@s.whatsapp.net" becomes "5511999999999".
func StripJID(jid string) string {
	jid = strings.TrimSuffix(jid, "@s.whatsapp.net")
	jid = strings.TrimSuffix(jid, "@c.us")
	if at := strings.Index(jid, "@"); at >= 0 {
		jid = jid[:at]
	}
	return jid
}

// NormalizePhone reduces a phone string to digits and prepends the default
// country code to bare national numbers (10 or 11 digits). Numbers that
// already carry a country code (12+ digits) pass through unchanged.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone := digits.String()

	if len(phone) == 10 || len(phone) == 11 {
		return DefaultCountryCode() + phone
	}
	return phone
}
