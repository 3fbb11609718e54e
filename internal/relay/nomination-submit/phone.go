package nominationsubmit

import (
	"fmt"
	"strings"
)

// PhoneFormat describes the national numbering plan free-form phones are read in.
type PhoneFormat struct {
	CountryCode string
	TrunkPrefix string
}

// DefaultPhoneFormat is the North American Numbering Plan.
func DefaultPhoneFormat() PhoneFormat {
	return PhoneFormat{CountryCode: "1", TrunkPrefix: "1"}
}

func (f PhoneFormat) Validate() error {
	if f.CountryCode == "" || digitsOnly(f.CountryCode) != f.CountryCode {
		return fmt.Errorf("phone country code must be digits: %q", f.CountryCode)
	}
	if len(f.TrunkPrefix) != 1 || digitsOnly(f.TrunkPrefix) != f.TrunkPrefix {
		return fmt.Errorf("phone trunk prefix must be a single digit: %q", f.TrunkPrefix)
	}
	return nil
}

// Normalize returns the E.164 form of raw. Ten digits are a national number;
// eleven digits led by the trunk prefix have the prefix replaced by the
// country code. In NANP, where both are "1", the latter is "+" plus the digits.
// Anything else is rejected.
func (f PhoneFormat) Normalize(raw string) (string, bool) {
	digits := digitsOnly(raw)
	switch {
	case len(digits) == 10:
		return "+" + f.CountryCode + digits, true
	case len(digits) == 11 && strings.HasPrefix(digits, f.TrunkPrefix):
		return "+" + f.CountryCode + digits[len(f.TrunkPrefix):], true
	default:
		return "", false
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maskPhone keeps the last four digits for logs.
func maskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}
