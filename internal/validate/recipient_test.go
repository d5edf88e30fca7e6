package validate

import (
	"errors"
	"testing"
)

func TestRecipient(t *testing.T) {
	valid := []string{
		"+436641234567",
		"00436641234567",
		"06641234567",
		" 0664 1234567 ",
	}
	for _, number := range valid {
		if _, err := Recipient(number); err != nil {
			t.Fatalf("Recipient(%q) = %v, want accepted", number, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"abc",
		"+43-664",
		"call me",
	}
	for _, number := range invalid {
		if _, err := Recipient(number); !errors.Is(err, ErrInvalidRecipient) {
			t.Fatalf("Recipient(%q) = %v, want ErrInvalidRecipient", number, err)
		}
	}
}

func TestRecipientPreservesPrefix(t *testing.T) {
	got, err := Recipient(" +436641234567 ")
	if err != nil {
		t.Fatalf("Recipient: %v", err)
	}
	if got != "+436641234567" {
		t.Fatalf("Recipient trimmed to %q, want the + prefix kept", got)
	}
}
