package delivery

import "errors"

// Outcomes of trying to start a notification delivery.
var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)
