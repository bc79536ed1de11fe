package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/domain/user"
	"ride-market/internal/general/jwt"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/memstore"
	"ride-market/internal/general/websocket"
	"ride-market/internal/ports"
	"ride-market/internal/software/marketplace/handler"
	"ride-market/internal/software/marketplace/service"
)

const testSecret = "test-secret-0123456789abcdef0123456789abcdef"

type nopGateway struct{}

func (nopGateway) Charge(ctx context.Context, userID string, amount money.Amount, referenceID string) error {
	return nil
}
func (nopGateway) Refund(ctx context.Context, userID string, amount money.Amount, referenceID string) error {
	return nil
}

type nopPublisher struct{ mu sync.Mutex }

func (p *nopPublisher) Publish(exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return nil
}

func newServer(t *testing.T) (*httptest.Server, *jwt.Manager) {
	t.Helper()

	store := memstore.New()
	log := logger.New("marketplace-test")
	mgr := jwt.NewManager(testSecret, time.Hour)
	feed := websocket.NewFeed(log, mgr)

	svc := service.NewMarketplaceService(
		log,
		store,
		store,
		store,
		store.Bids(),
		store,
		store,
		nopGateway{},
		service.FixedTaxRate(0),
		&nopPublisher{},
		nil,
		feed,
		request.Admission{},
	)

	mux := http.NewServeMux()
	handler.NewMarketHTTPHandler(svc, log, mgr, feed).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func token(t *testing.T, mgr *jwt.Manager, userID string, role user.Role) string {
	t.Helper()
	tok, _, err := mgr.IssueUserToken(userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, method, url, bearer string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, out.Bytes()
}

func createRequestHTTP(t *testing.T, srv *httptest.Server, bearer string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/requests", bearer, map[string]any{
		"origin":          "Old Town",
		"destination":     "Airport",
		"departure_at":    time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339),
		"seats_requested": 1,
		"max_passengers":  3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request status = %d: %s", resp.StatusCode, body)
	}
	var res ports.OperationResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return res.Request.RequestID
}

func TestCreateAndFetchRequest(t *testing.T) {
	srv, mgr := newServer(t)
	rider := token(t, mgr, "owner-1", user.RoleRider)

	reqID := createRequestHTTP(t, srv, rider)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/requests/"+reqID, rider, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get request status = %d: %s", resp.StatusCode, body)
	}
	var view ports.RequestView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.OwnerID != "owner-1" || view.Status != "OPEN" {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Passengers) != 1 || view.Passengers[0].UserID != "owner-1" {
		t.Fatalf("owner passenger row missing: %+v", view.Passengers)
	}
}

func TestBidRoleEnforcement(t *testing.T) {
	srv, mgr := newServer(t)
	rider := token(t, mgr, "owner-1", user.RoleRider)
	reqID := createRequestHTTP(t, srv, rider)

	// riders cannot bid
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/bids", rider, map[string]any{
		"vehicle_id": "veh-1", "price_minor": 100,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("rider bid status = %d, want 403", resp.StatusCode)
	}

	driver := token(t, mgr, "driver-1", user.RoleDriver)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/bids", driver, map[string]any{
		"vehicle_id": "veh-1", "price_minor": 100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("driver bid status = %d: %s", resp.StatusCode, body)
	}

	// no token at all
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/bids", "", map[string]any{
		"vehicle_id": "veh-2", "price_minor": 90,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous bid status = %d, want 401", resp.StatusCode)
	}
}

func TestAcceptBidFullFlow(t *testing.T) {
	srv, mgr := newServer(t)
	rider := token(t, mgr, "owner-1", user.RoleRider)
	driver := token(t, mgr, "driver-1", user.RoleDriver)

	reqID := createRequestHTTP(t, srv, rider)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/bids", driver, map[string]any{
		"vehicle_id": "veh-1", "price_minor": 100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bid status = %d: %s", resp.StatusCode, body)
	}
	var bidRes ports.OperationResult
	if err := json.Unmarshal(body, &bidRes); err != nil {
		t.Fatal(err)
	}
	bidID := bidRes.Request.Bids[0].BidID

	// a stranger cannot accept
	stranger := token(t, mgr, "stranger", user.RoleRider)
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/bids/%s/accept", srv.URL, reqID, bidID), stranger, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger accept status = %d, want 403", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/bids/%s/accept", srv.URL, reqID, bidID), rider, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d: %s", resp.StatusCode, body)
	}
	var acceptRes ports.OperationResult
	if err := json.Unmarshal(body, &acceptRes); err != nil {
		t.Fatal(err)
	}
	if acceptRes.Request.Status != "MATCHED" {
		t.Fatalf("status = %s, want MATCHED", acceptRes.Request.Status)
	}

	// accepting again conflicts
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/requests/%s/bids/%s/accept", srv.URL, reqID, bidID), rider, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second accept status = %d, want 409", resp.StatusCode)
	}
}

func TestJoinAndLeaveOverHTTP(t *testing.T) {
	srv, mgr := newServer(t)
	rider := token(t, mgr, "owner-1", user.RoleRider)
	joiner := token(t, mgr, "rider-2", user.RoleRider)

	reqID := createRequestHTTP(t, srv, rider)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/passengers", joiner, map[string]any{
		"seats_wanted": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d: %s", resp.StatusCode, body)
	}

	// a rider cannot remove someone else
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/requests/"+reqID+"/passengers/rider-2", rider, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("remove other status = %d, want 403", resp.StatusCode)
	}

	// self-removal works
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/requests/"+reqID+"/passengers/rider-2", joiner, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leave status = %d: %s", resp.StatusCode, body)
	}

	// admins may remove anyone; rider-2 rejoins first
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/passengers", joiner, map[string]any{
		"seats_wanted": 1,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rejoin status = %d", resp.StatusCode)
	}
	admin := token(t, mgr, "admin-1", user.RoleAdmin)
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/requests/"+reqID+"/passengers/rider-2", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin remove status = %d, want 200", resp.StatusCode)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, mgr := newServer(t)
	rider := token(t, mgr, "owner-1", user.RoleRider)

	// unknown request -> 404
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/requests/does-not-exist", rider, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown request status = %d, want 404", resp.StatusCode)
	}

	// invalid capacity -> 400
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/requests", rider, map[string]any{
		"origin":          "A",
		"destination":     "B",
		"departure_at":    time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		"seats_requested": 3,
		"max_passengers":  1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid capacity status = %d, want 400", resp.StatusCode)
	}

	// unknown JSON field -> 400
	reqID := createRequestHTTP(t, srv, rider)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/passengers", rider, map[string]any{
		"seats_wanted": 1, "bogus": true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", resp.StatusCode)
	}

	// owner joining own request -> 409
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/requests/"+reqID+"/passengers", rider, map[string]any{
		"seats_wanted": 1,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double join status = %d, want 409", resp.StatusCode)
	}
}

func TestListOpenRequests(t *testing.T) {
	srv, mgr := newServer(t)
	rider := token(t, mgr, "owner-1", user.RoleRider)

	createRequestHTTP(t, srv, rider)
	createRequestHTTP(t, srv, rider)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/requests?limit=10", rider, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Requests []*ports.RequestView `json:"requests"`
		Count    int                  `json:"count"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.Requests) != 2 {
		t.Fatalf("count = %d/%d, want 2", out.Count, len(out.Requests))
	}
}

func TestHealthAndTokenEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/requests/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/tokens", "", map[string]any{
		"user_id": "dev-user", "role": "RIDER",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("token status = %d: %s", resp.StatusCode, body)
	}
	var tok handler.TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		t.Fatal(err)
	}
	if tok.Token == "" || tok.UserID != "dev-user" {
		t.Fatalf("token response = %+v", tok)
	}
}
