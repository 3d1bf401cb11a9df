package jobs

type JobType string

const (
	JobBookingConfirmation  JobType = "booking.confirmation"
	JobBookingStatusChanged JobType = "booking.status_changed"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobBookingConfirmation, JobBookingStatusChanged:
		return true
	default:
		return false
	}
}
