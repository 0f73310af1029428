// Package id generates prefixed identifiers for download tasks and other runtime records.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the record kinds the core hands out.
const (
	PrefixTask    = "task"
	PrefixSession = "play"
)

const size = 16

// Generate creates a prefixed NanoID, e.g. "task-V1StGXR8_Z5jdHi6".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New(size)
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

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	return ok && len(rest) == size
}
