// Package idgen generates identifiers: nanoid-backed session ids and UUID row ids.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// SessionPrefix is prepended to every session id.
const SessionPrefix = "ses-"

// Alphabet defines the character set used for the random portion of session ids.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters in a session id (excluding the prefix).
var Length = 21

// SessionID returns a new session id such as "ses-V1StGXR8Z5jdHi6BmyT2a".
func SessionID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return SessionPrefix + id, nil
}

// RowID returns a new random UUID for users, customers and consultation requests.
func RowID() string {
	return uuid.NewString()
}

// IsRowID reports whether s parses as a UUID.
func IsRowID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
