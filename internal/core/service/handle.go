package service

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// handleLength is the fixed width of a generated login handle.
const handleLength = 12

const handleAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateHandle builds a login handle from the bank's initials plus random
// uppercase alphanumerics, e.g. "BS-K4T9QW27X". Handles are assigned at
// registration and never user-chosen.
func GenerateHandle(bankName string) (string, error) {
	prefix := bankInitials(bankName)
	if prefix == "" {
		prefix = "BK"
	}

	n := handleLength - len(prefix) - 1
	if n < 4 {
		n = 4
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate handle: %w", err)
	}
	for i, b := range buf {
		buf[i] = handleAlphabet[int(b)%len(handleAlphabet)]
	}

	return prefix + "-" + string(buf), nil
}

// bankInitials reduces "Bank Stream" to "BS". Separator punctuation is
// treated as word breaks.
func bankInitials(name string) string {
	cleaned := strings.NewReplacer(".", " ", "-", " ", "_", " ").Replace(name)
	var initials strings.Builder
	for _, word := range strings.Fields(cleaned) {
		initials.WriteString(strings.ToUpper(word[:1]))
	}
	return initials.String()
}
