package qa

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies wall-clock time. Components take a Clock so tests can pin
// timestamps and durations.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in canonical form.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return Now()
}

// IDGenerator produces unique record identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which keeps "newest first" tie-breaks stable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
