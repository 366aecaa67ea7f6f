package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both a missing entry and an entry owned by another user.
	ErrNotFound = errors.New("entry not found")
	// ErrConfiguration means a required external credential is missing.
	ErrConfiguration = errors.New("generation service not configured")
	ErrInvalidEntry  = errors.New("invalid entry")

	ErrNoInterpretation = fmt.Errorf("%w: no interpretation stored", ErrNotFound)
)
