package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-market/internal/domain/user"
	"ride-market/internal/general/jwt"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/websocket"
	"ride-market/internal/ports"
)

// MarketHTTPHandler adapts HTTP requests to the MarketplaceService.
type MarketHTTPHandler struct {
	svc    ports.MarketplaceService
	logger *logger.Logger
	auth   *jwt.Manager
	feed   *websocket.Feed
}

// NewMarketHTTPHandler wires an HTTP handler around the MarketplaceService.
func NewMarketHTTPHandler(
	svc ports.MarketplaceService,
	logger *logger.Logger,
	auth *jwt.Manager,
	feed *websocket.Feed,
) *MarketHTTPHandler {
	return &MarketHTTPHandler{svc: svc, logger: logger, auth: auth, feed: feed}
}

// RegisterRoutes mounts marketplace endpoints on the provided mux.
func (handler *MarketHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /requests",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleCreateRequest),
	)
	mux.HandleFunc("GET /requests",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider, user.RoleDriver, user.RoleAdmin)(handler.handleListRequests),
	)
	mux.HandleFunc("GET /requests/{request_id}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider, user.RoleDriver, user.RoleAdmin)(handler.handleGetRequest),
	)
	mux.HandleFunc("POST /requests/{request_id}/bids",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleSubmitBid),
	)
	mux.HandleFunc("POST /requests/{request_id}/bids/{bid_id}/accept",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleAcceptBid),
	)
	mux.HandleFunc("POST /requests/{request_id}/passengers",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleJoinRequest),
	)
	mux.HandleFunc("DELETE /requests/{request_id}/passengers/{user_id}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider, user.RoleAdmin)(handler.handleLeaveRequest),
	)
	mux.HandleFunc("POST /requests/{request_id}/cancel",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider, user.RoleAdmin)(handler.handleCancelRequest),
	)
	mux.HandleFunc("POST /requests/{request_id}/complete",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver, user.RoleAdmin)(handler.handleCompleteRequest),
	)

	// WebSocket authenticates on the first frame, no middleware
	mux.HandleFunc("GET /ws/requests/{request_id}", handler.feed.HandleRequestFeed)

	mux.HandleFunc("GET /requests/health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- general helpers -----

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

// TokenResponse represents the response for token generation
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

func (handler *MarketHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateToken issues a signed token for local development and tests.
func (handler *MarketHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if err := handler.decodeStrict(w, r, &req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	response := TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": req.Role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, response)
}

// decodeStrict enforces JSON content type, a 1 MiB body cap and unknown
// field rejection.
func (handler *MarketHTTPHandler) decodeStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return errors.New("Content-Type must be application/json")
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (handler *MarketHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *MarketHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusConflict {
		action = "state_conflict"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *MarketHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
