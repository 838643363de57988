package sessions

import "github.com/wolfman30/clinic-session-sync/internal/apperr"

var (
	ErrSessionNotFound = apperr.New(apperr.ErrNotFound, "Session not found.")
	ErrBookingNotFound = apperr.New(apperr.ErrNotFound, "Booking not found.")
	ErrUserNotFound    = apperr.New(apperr.ErrNotFound, "User not found.")

	ErrInvalidDoctor    = apperr.New(apperr.ErrInvalidReference, "Invalid doctor ID or the user is not a doctor.")
	ErrInvalidTimeRange = apperr.New(apperr.ErrInvalidTimeRange, "End time must be after start time.")
	ErrInvalidCapacity  = apperr.New(apperr.ErrInvalidInput, "Capacity must be a positive number.")
	ErrInvalidFee       = apperr.New(apperr.ErrInvalidInput, "Fee cannot be negative.")

	ErrNotSessionOwner   = apperr.New(apperr.ErrUnauthorized, "Only the doctor who owns this session can change it.")
	ErrNotBookingManager = apperr.New(apperr.ErrUnauthorized, "Only the session's doctor or an admin can update this booking.")
	ErrNotPatient        = apperr.New(apperr.ErrUnauthorized, "Only patients can book a session.")

	ErrAnotherSessionOngoing  = apperr.New(apperr.ErrConflict, "Another session is already ongoing. Please stop the current session before starting a new one.")
	ErrSessionAlreadyCanceled = apperr.New(apperr.ErrConflict, "Session is already canceled.")
	ErrSessionCompleted       = apperr.New(apperr.ErrConflict, "Session is already completed.")
	ErrSessionAlreadyStarted  = apperr.New(apperr.ErrConflict, "Session has already started and can no longer be edited.")
	ErrCapacityBelowBookings  = apperr.New(apperr.ErrConflict, "Capacity cannot be lower than the number of existing bookings.")
	ErrSessionFull            = apperr.New(apperr.ErrConflict, "Session is fully booked.")
	ErrAlreadyBooked          = apperr.New(apperr.ErrConflict, "You have already booked this session.")
	ErrQueuePositionTaken     = apperr.New(apperr.ErrConflict, "Queue position was taken by another booking. Please retry.")
)
