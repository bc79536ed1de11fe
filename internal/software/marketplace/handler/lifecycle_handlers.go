package handler

import (
	"net/http"
	"strings"

	"ride-market/internal/domain/user"
	"ride-market/internal/general/jwt"
)

func (handler *MarketHTTPHandler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
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

	asAdmin := claims.Role == user.RoleAdmin

	result, err := handler.svc.CancelRequest(ctx, requestID, claims.Subject, asAdmin)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}

func (handler *MarketHTTPHandler) handleCompleteRequest(w http.ResponseWriter, r *http.Request) {
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

	result, err := handler.svc.CompleteRequest(ctx, requestID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}
