// Package id generates identifiers for records, tickets, and stream clients.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/lucidlyapp/lucidly/internal/domain"
)

// Prefixes for generated ids.
const (
	PrefixTicket = "tkt"
	PrefixClient = "sse"
	PrefixState  = "oauth"
)

// Generate creates a prefixed NanoID, e.g. "tkt-V1StGXR8_Z5jdHi6B-myT".
// It fails only when the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Temp returns a placeholder id for a record the store has not confirmed yet.
func Temp() string {
	return domain.TempIDPrefix + uuid.NewString()
}

// Record returns a store-side record id. Used by backends that assign ids themselves.
func Record() string {
	return uuid.NewString()
}
