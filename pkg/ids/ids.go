// Package ids generates identifiers for persisted rows and payment references.
package ids

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New returns a time-ordered UUIDv7, so ties on created_at still sort by insertion.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Reference returns a human-readable reference such as "SBP-01J9...".
func Reference(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

// Lower is Reference with a lowercase body, used for synthetic provider ids.
func Lower(prefix string) string {
	return prefix + "-" + strings.ToLower(ulid.Make().String())
}
