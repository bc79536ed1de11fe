package handler

import (
	"net/http"
	"strings"

	"ride-market/internal/domain/user"
	"ride-market/internal/general/jwt"
)

// JoinRequestBody is the wire payload for joining as a co-passenger.
type JoinRequestBody struct {
	SeatsWanted int `json:"seats_wanted"`
}

func (handler *MarketHTTPHandler) handleJoinRequest(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "Missing authentication", nil)
		return
	}

	requestID := strings.TrimSpace(r.PathValue("request_id"))
	if requestID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "request_id is required", nil)
		return
	}

	var body JoinRequestBody
	if !handler.decodeBody(ctx, w, r, &body) {
		return
	}

	result, err := handler.svc.JoinRequest(ctx, requestID, claims.Subject, body.SeatsWanted)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}

// handleLeaveRequest removes a passenger. Riders can only remove themselves;
// admins may remove anyone.
func (handler *MarketHTTPHandler) handleLeaveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "Missing authentication", nil)
		return
	}

	requestID := strings.TrimSpace(r.PathValue("request_id"))
	userID := strings.TrimSpace(r.PathValue("user_id"))
	if requestID == "" || userID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "request_id and user_id are required", nil)
		return
	}

	if claims.Role != user.RoleAdmin && claims.Subject != userID {
		handler.httpError(ctx, w, http.StatusForbidden, "Cannot remove another passenger", nil)
		return
	}

	result, err := handler.svc.LeaveRequest(ctx, requestID, userID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}
