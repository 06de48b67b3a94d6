package mpesa

import "strings"

const countryPrefix = "254"

// NormalizePhone canonicalizes a payer number to the 254XXXXXXXXX form the
// gateway expects. Deterministic and total over the expected shapes:
// "0712345678", "+254712345678", "254712345678" and bare "712345678" all
// normalize to "254712345678". Normalizing an already-normalized number
// returns it unchanged.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")

	switch {
	case strings.HasPrefix(phone, "0"):
		return countryPrefix + phone[1:]
	case strings.HasPrefix(phone, countryPrefix):
		return phone
	default:
		return countryPrefix + phone
	}
}
