package astra

import (
	"errors"
	"strings"
)

// Error is the first entry of a Data API "errors" array.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// isExistingCollection reports the Data API's answer to createCollection when the
// collection exists with different settings. Same-settings re-creation succeeds.
func (e *Error) isExistingCollection() bool {
	switch e.Code {
	case "EXISTING_COLLECTION_DIFFERENT_SETTINGS", "INVALID_COLLECTION_NAME_ALREADY_EXISTS":
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "already exists")
}

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}
