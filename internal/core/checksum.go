package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

const sha256HexLength = 64

// maxPlaceholderPeriod bounds the repeating unit searched for by
// IsPlaceholderChecksum.  "1234567890abcdef" has period 16.
const maxPlaceholderPeriod = 16

// NormalizeChecksum lowercases and trims a declared digest.
func NormalizeChecksum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidateChecksumFormat reports whether value is a well-formed SHA-256
// hex digest.  It does not detect placeholders.
func ValidateChecksumFormat(value string) error {
	normalized := NormalizeChecksum(value)
	if normalized == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source.sha256 must be set")
	}
	if len(normalized) != sha256HexLength {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("source.sha256 must be %d hex characters, got %d", sha256HexLength, len(normalized)))
	}
	if !isHex(normalized) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source.sha256 contains non-hex characters")
	}
	return nil
}

// IsPlaceholderChecksum flags digests that are obviously hand-typed
// filler: any hex string built from a short repeating unit, such as
// "1234567890abcdef1234..." or "0000...".  A real SHA-256 output never
// has a period this short.
func IsPlaceholderChecksum(value string) bool {
	normalized := NormalizeChecksum(value)
	if len(normalized) < 2*maxPlaceholderPeriod || !isHex(normalized) {
		return false
	}
	for period := 1; period <= maxPlaceholderPeriod; period++ {
		if hasPeriod(normalized, period) {
			return true
		}
	}
	return false
}

// ValidateChecksum combines the format and placeholder checks.
func ValidateChecksum(value string) error {
	if err := ValidateChecksumFormat(value); err != nil {
		return err
	}
	if IsPlaceholderChecksum(value) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source.sha256 is a placeholder, regenerate it with `checksum --write`")
	}
	return nil
}

// VerifyDigest compares a computed digest with the declared one.
func VerifyDigest(expected string, actual string) error {
	want := NormalizeChecksum(expected)
	got := NormalizeChecksum(actual)
	if want != got {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("checksum mismatch: expected %s, got %s", want, got))
	}
	return nil
}

func hasPeriod(value string, period int) bool {
	for i := period; i < len(value); i++ {
		if value[i] != value[i-period] {
			return false
		}
	}
	return true
}

func isHex(value string) bool {
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
