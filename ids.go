package respan

import "github.com/google/uuid"

// NewTraceID returns a fresh trace identifier. Trace IDs are time-ordered
// (UUIDv7) so ingest-side sorting by trace ID roughly follows creation
// order; if v7 generation fails it falls back to a random UUID.
func NewTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewSpanID returns a fresh random span identifier.
func NewSpanID() string {
	return uuid.NewString()
}
