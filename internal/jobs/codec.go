package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/geocoder89/tourhub/internal/domain/job"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, &PayloadError{Type: t, Err: ErrInvalidJobType}
	}

	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, &PayloadError{Type: t, Err: fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)}
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the typed payload struct for j.Type.
func DecodePayload(j job.Job) (any, error) {
	t := JobType(j.Type)
	if !t.IsValid() {
		return nil, &PayloadError{Type: t, Err: ErrInvalidJobType}
	}
	if len(j.Payload) == 0 {
		return nil, &PayloadError{Type: t, Err: ErrInvalidJobPayload}
	}

	var p any
	switch t {
	case JobBookingConfirmation:
		var v BookingConfirmationPayload
		if err := json.Unmarshal(j.Payload, &v); err != nil {
			return nil, &PayloadError{Type: t, Err: fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)}
		}
		p = v

	case JobBookingStatusChanged:
		var v BookingStatusChangedPayload
		if err := json.Unmarshal(j.Payload, &v); err != nil {
			return nil, &PayloadError{Type: t, Err: fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)}
		}
		p = v
	}

	if err := ValidatePayload(t, p); err != nil {
		return nil, err
	}
	return p, nil
}

// NewRequest encodes payload and builds a job create request for it.
func NewRequest(t JobType, payload any, idempotencyKey string) (*job.CreateRequest, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return nil, err
	}

	req := &job.CreateRequest{
		Type:    string(t),
		Payload: b,
	}
	if idempotencyKey != "" {
		req.IdempotencyKey = &idempotencyKey
	}
	return req, nil
}
