package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange      = errors.New("start time must be before end time")
	ErrDuplicate         = errors.New("identical active availability rule already exists")
	ErrInvalidTime       = errors.New("booking time must be in the future")
	ErrInvalidDuration   = errors.New("booking duration must be positive")
	ErrSlotUnavailable   = errors.New("time slot is no longer available")
	ErrPaymentRequired   = errors.New("booking must be paid before confirmation")
	ErrInvalidTransition = errors.New("booking status does not allow this action")
	ErrNotFound          = errors.New("not found")
	ErrPaymentProvider   = errors.New("payment provider error")

	// ErrOutsideAvailability частный случай ErrSlotUnavailable: окно не покрыто
	// ни одним активным правилом преподавателя.
	ErrOutsideAvailability = fmt.Errorf("%w: outside tutor availability", ErrSlotUnavailable)
)
