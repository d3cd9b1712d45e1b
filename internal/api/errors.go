package api

import (
	"context"
	"errors"
	"net/http"

	"barbershop/internal/database"
	"barbershop/internal/models"
	"barbershop/internal/service"

	"google.golang.org/grpc/codes"
)

var validationErrors = []error{
	models.ErrInvalidClock,
	models.ErrInvalidWindow,
	models.ErrBreakOutsideWindow,
	models.ErrInvalidWeekday,
	models.ErrIncompleteWeek,
	models.ErrInvalidDuration,
	models.ErrInvalidStatus,
	models.ErrInvalidPhone,
	models.ErrInvalidDate,
	models.ErrMissingField,
	service.ErrPastSlot,
	service.ErrDateTooFar,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// httpStatus maps service and storage errors to response codes.
func httpStatus(err error) int {
	switch {
	case isValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, service.ErrReservationBusy),
		errors.Is(err, service.ErrAlreadyFinal),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrCancelTooLate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusConflict:
		if errors.Is(err, service.ErrSlotUnavailable) || errors.Is(err, service.ErrReservationBusy) {
			return codes.AlreadyExists
		}
		return codes.FailedPrecondition
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// errorBody is the JSON error response. Reason is set for rejected slots.
type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func newErrorBody(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var se *service.SlotError
	if errors.As(err, &se) {
		body.Reason = string(se.Reason)
	}
	if httpStatus(err) == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	return body
}
