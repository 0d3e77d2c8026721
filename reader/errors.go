package reader

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is matched by every structural extraction failure.
var ErrMalformedDocument = errors.New("malformed document")

// MalformedDocumentError names the structural anchor that could not be
// found in the page.
type MalformedDocumentError struct {
	Anchor string
	Reason string
}

func (e *MalformedDocumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed document: %s not found", e.Anchor)
	}
	return fmt.Sprintf("malformed document: %s: %s", e.Anchor, e.Reason)
}

func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

func malformed(anchor, reason string) error {
	return &MalformedDocumentError{Anchor: anchor, Reason: reason}
}
