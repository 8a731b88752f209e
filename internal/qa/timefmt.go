package qa

import "time"

// TimestampLayout is fixed-width so that lexical order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
// The zero time formats as the empty string.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string. RFC 3339 input is accepted
// as well so hand-written records and query bounds remain usable.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return Normalize(t), nil
}

// Normalize converts t to UTC with millisecond precision and no monotonic
// reading, the canonical form for every persisted timestamp.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Now returns the current time in canonical form.
func Now() time.Time {
	return Normalize(time.Now())
}
