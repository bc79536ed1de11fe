package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"ride-market/internal/domain/request"
)

// serviceError maps a service failure onto an HTTP status and a message the
// caller is allowed to see. Database failures stay 500 with a generic body.
func (handler *MarketHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Storage failure", err)
		return
	}

	switch {
	case errors.Is(err, request.ErrRequestNotFound),
		errors.Is(err, request.ErrBidNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, err.Error(), err)

	case errors.Is(err, request.ErrNotOwner),
		errors.Is(err, request.ErrOwnerCannotLeave):
		handler.httpError(ctx, w, http.StatusForbidden, err.Error(), err)

	case errors.Is(err, request.ErrRequestNotOpen),
		errors.Is(err, request.ErrAlreadyMatched),
		errors.Is(err, request.ErrRequestNotJoinable),
		errors.Is(err, request.ErrDuplicateBid),
		errors.Is(err, request.ErrAlreadyJoined),
		errors.Is(err, request.ErrCapacityExceeded),
		errors.Is(err, request.ErrNotAPassenger),
		errors.Is(err, request.ErrInvalidTransition):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)

	case errors.Is(err, request.ErrInvalidCapacity),
		errors.Is(err, request.ErrInvalidSeats),
		errors.Is(err, request.ErrOriginRequired),
		errors.Is(err, request.ErrDestinationRequired),
		errors.Is(err, request.ErrDepartureRequired),
		errors.Is(err, request.ErrOwnerRequired),
		errors.Is(err, request.ErrUserRequired),
		errors.Is(err, request.ErrDriverRequired),
		errors.Is(err, request.ErrVehicleRequired),
		errors.Is(err, request.ErrBidPriceInvalid):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)

	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "Internal server error", err)
	}
}

// decodeBody runs the strict decode pipeline and writes the error response
// itself. Returns false when the handler should bail out.
func (handler *MarketHTTPHandler) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := handler.decodeStrict(w, r, dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}
