package scheduling

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidTime               = errors.New("invalid time")
	ErrSlotTaken                 = errors.New("slot already taken")
	ErrPatientDoubleBooked       = errors.New("patient already booked at this time")
	ErrDuplicateSpecialtyBooking = errors.New("patient already has an open reservation for this specialty")
	ErrConfiguration             = errors.New("configuration error")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrInvalidInput              = errors.New("invalid input")
)
