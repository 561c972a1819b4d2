// Package id generates and parses entity identifiers.
//
// Identifiers are UUIDv7: the leading timestamp bits make them sort by
// creation time, which keeps PostgreSQL B-tree inserts append-mostly.
package id

import (
	"github.com/google/uuid"
)

// ID aliases uuid.UUID so callers never import the uuid package directly.
type ID = uuid.UUID

// New generates a time-ordered identifier. uuid.NewV7 only fails when the
// system clock or entropy source is broken; a random V4 is the fallback.
func New() ID {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v7
}

// Parse validates and converts a string identifier.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse panics on a malformed identifier. For constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero identifier.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether the identifier is the zero value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
