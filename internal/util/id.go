package util

import "github.com/google/uuid"

// NewID returns a fresh random identifier for new rows.
func NewID() string {
	return uuid.NewString()
}
