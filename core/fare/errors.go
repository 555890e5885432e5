package fare

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a trip description cannot be priced.
	ErrInvalidInput = errors.New("invalid fare input")
	// ErrUnknownVehicleClass is returned for classes without a schedule.
	ErrUnknownVehicleClass = errors.New("unknown vehicle class")
	// ErrInvalidSchedule is returned when a schedule or surcharge update is rejected.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// ScheduleError describes why a settings update was rejected.
type ScheduleError struct {
	Field  string
	Reason string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidSchedule, e.Field, e.Reason)
}

func (e *ScheduleError) Unwrap() error { return ErrInvalidSchedule }

func scheduleErr(field, format string, args ...any) error {
	return &ScheduleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
