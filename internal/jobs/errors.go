package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidJobType      = errors.New("unknown notification job type")
	ErrInvalidJobPayload   = errors.New("malformed notification payload")
	ErrPayloadTypeMismatch = errors.New("payload does not belong to job type")
)

// PayloadError ties a payload failure to the job type and the field at fault.
// It unwraps to one of the sentinels above.
type PayloadError struct {
	Type  JobType
	Field string
	Err   error
}

func (e *PayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Field, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

func invalidField(t JobType, field string) error {
	return &PayloadError{Type: t, Field: field, Err: ErrInvalidJobPayload}
}
