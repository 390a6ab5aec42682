// Package id generates identifiers for stored records and synthetic events.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for generated record IDs.
const (
	PrefixNotification = "ntf"
	PrefixWatchEvent   = "watch"
	PrefixSSEClient    = "sse"
)

// Generate returns prefix + "-" + a 21 character NanoID (e.g. "ntf-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// MessageID returns an ID for events that did not arrive through Pub/Sub,
// such as those synthesised by the local bucket watcher.
func MessageID() string {
	return PrefixWatchEvent + "-" + uuid.NewString()
}
