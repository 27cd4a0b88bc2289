package store

import "github.com/google/uuid"

// NewID generates a time-ordered record id.
//
// UUIDv7 keeps ids sortable by creation time. Ids coming from imports or
// older data are kept as-is; nothing parses them.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system random source fails.
		return uuid.NewString()
	}

	return id.String()
}
