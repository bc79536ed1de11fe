package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"ride-market/internal/general/jwt"
	"ride-market/internal/ports"
)

// CreateRequestBody is the wire payload for publishing a rider request.
type CreateRequestBody struct {
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureAt    time.Time `json:"departure_at"`
	SeatsRequested int       `json:"seats_requested"`
	MaxPassengers  int       `json:"max_passengers"`
}

func (handler *MarketHTTPHandler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "Missing authentication", nil)
		return
	}

	var body CreateRequestBody
	if !handler.decodeBody(ctx, w, r, &body) {
		return
	}

	result, err := handler.svc.CreateRequest(ctx, ports.CreateRequestInput{
		OwnerID:        claims.Subject,
		Origin:         body.Origin,
		Destination:    body.Destination,
		DepartureAt:    body.DepartureAt,
		SeatsRequested: body.SeatsRequested,
		MaxPassengers:  body.MaxPassengers,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, result)
}

func (handler *MarketHTTPHandler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	requestID := strings.TrimSpace(r.PathValue("request_id"))
	if requestID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "request_id is required", nil)
		return
	}

	view, err := handler.svc.GetRequest(ctx, requestID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, view)
}

func (handler *MarketHTTPHandler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	views, err := handler.svc.ListOpenRequests(ctx, limit)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	type listResponse struct {
		Requests []*ports.RequestView `json:"requests"`
		Count    int                  `json:"count"`
	}
	if views == nil {
		views = []*ports.RequestView{}
	}

	handler.jsonResponse(ctx, w, http.StatusOK, listResponse{Requests: views, Count: len(views)})
}
