package jobs

// ValidatePayload checks that payload matches t and carries the required IDs.
func ValidatePayload(t JobType, payload any) error {
	switch t {
	case JobBookingConfirmation:
		var p BookingConfirmationPayload
		switch v := payload.(type) {
		case BookingConfirmationPayload:
			p = v
		case *BookingConfirmationPayload:
			p = *v
		default:
			return &PayloadError{Type: t, Err: ErrPayloadTypeMismatch}
		}
		return checkRefs(t, p.BookingID, p.UserID, p.TourID)

	case JobBookingStatusChanged:
		var p BookingStatusChangedPayload
		switch v := payload.(type) {
		case BookingStatusChangedPayload:
			p = v
		case *BookingStatusChangedPayload:
			p = *v
		default:
			return &PayloadError{Type: t, Err: ErrPayloadTypeMismatch}
		}
		if err := checkRefs(t, p.BookingID, p.UserID, p.TourID); err != nil {
			return err
		}
		if p.To == "" {
			return invalidField(t, "to")
		}
		if p.From == p.To {
			return invalidField(t, "from")
		}
		return nil

	default:
		return &PayloadError{Type: t, Err: ErrInvalidJobType}
	}
}

func checkRefs(t JobType, bookingID, userID, tourID int64) error {
	switch {
	case bookingID <= 0:
		return invalidField(t, "booking_id")
	case userID <= 0:
		return invalidField(t, "user_id")
	case tourID <= 0:
		return invalidField(t, "tour_id")
	}
	return nil
}
