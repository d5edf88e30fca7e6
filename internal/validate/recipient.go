// Package validate holds the input checks the kontosms binary performs
// before handing values to the portal client.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRecipient is returned for numbers that cannot possibly be dialed.
var ErrInvalidRecipient = errors.New("invalid recipient number")

// The portals accept national (0664...), international (0043...) and
// plus-prefixed (+43...) forms, optionally with spaces. Anything else is
// rejected locally; the portal stays the authority on real validity.
var recipientPattern = regexp.MustCompile(`^(\+|00)?\d[\d ]{3,}$`)

// Recipient trims and checks one recipient number, returning it unchanged
// otherwise. The leading + or 00 prefix is preserved.
func Recipient(number string) (string, error) {
	trimmed := strings.TrimSpace(number)
	if !recipientPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, number)
	}
	return trimmed, nil
}
