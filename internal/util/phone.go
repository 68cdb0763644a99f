package util

import "regexp"

// msisdnRe is the strict wire contract: leading +, digits only.
var msisdnRe = regexp.MustCompile(`^\+\d+$`)

// ValidMSISDN reports whether s is a +<digits> phone number.
// No normalization is attempted; the webhook contract is exact-match.
func ValidMSISDN(s string) bool {
	return msisdnRe.MatchString(s)
}
