package models

import "errors"

var (
	ErrInvalidClock       = errors.New("time must be HH:MM (24h)")
	ErrInvalidWindow      = errors.New("end must be after start")
	ErrBreakOutsideWindow = errors.New("break must lie inside working hours")
	ErrInvalidWeekday     = errors.New("day of week must be 0..6")
	ErrIncompleteWeek     = errors.New("weekly schedule must have exactly one record per weekday")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrInvalidStatus      = errors.New("unknown status")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrInvalidDate        = errors.New("date must be YYYY-MM-DD")
	ErrMissingField       = errors.New("required field is missing")
)
