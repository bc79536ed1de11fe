package handler

import (
	"net/http"
	"strings"

	"ride-market/internal/general/jwt"
	"ride-market/internal/ports"
)

// SubmitBidBody is the wire payload for a driver's offer.
type SubmitBidBody struct {
	VehicleID  string `json:"vehicle_id"`
	PriceMinor int64  `json:"price_minor"`
	Message    string `json:"message,omitempty"`
}

func (handler *MarketHTTPHandler) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
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

	var body SubmitBidBody
	if !handler.decodeBody(ctx, w, r, &body) {
		return
	}

	result, err := handler.svc.SubmitBid(ctx, ports.SubmitBidInput{
		RequestID:  requestID,
		DriverID:   claims.Subject,
		VehicleID:  body.VehicleID,
		PriceMinor: body.PriceMinor,
		Message:    body.Message,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, result)
}

func (handler *MarketHTTPHandler) handleAcceptBid(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "Missing authentication", nil)
		return
	}

	requestID := strings.TrimSpace(r.PathValue("request_id"))
	bidID := strings.TrimSpace(r.PathValue("bid_id"))
	if requestID == "" || bidID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "request_id and bid_id are required", nil)
		return
	}

	result, err := handler.svc.AcceptBid(ctx, requestID, claims.Subject, bidID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}
