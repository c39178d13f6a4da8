package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// FitID identifies a fitted model record.
type FitID ID

func NewFitID() FitID { return FitID(NewID()) }

func (id FitID) String() string { return ID(id).String() }

// ParseFitID parses a string into FitID. The value must be a UUID.
func ParseFitID(s string) (FitID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("fit ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("fit ID %q is not a UUID: %w", s, err)
	}
	return FitID(s), nil
}
