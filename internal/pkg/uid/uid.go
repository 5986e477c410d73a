// Package uid generates identifiers: numeric snowflake ids for rows and
// UUID v7 strings for token ids and correlation ids.
package uid

import "github.com/google/uuid"

// NumberID generates unique int64 identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}

// UUID generates version 7 UUID strings, falling back to version 4 when the
// clock source fails.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
