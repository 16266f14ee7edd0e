package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appBidding "github.com/resale-hub/claim-engine/internal/application/bidding"
	appClaim "github.com/resale-hub/claim-engine/internal/application/claim"
	appConversation "github.com/resale-hub/claim-engine/internal/application/conversation"
	appListing "github.com/resale-hub/claim-engine/internal/application/listing"
	appNotify "github.com/resale-hub/claim-engine/internal/application/notify"
	appPayment "github.com/resale-hub/claim-engine/internal/application/payment"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	"github.com/resale-hub/claim-engine/internal/domain/notification"
	"github.com/resale-hub/claim-engine/internal/domain/payment"
	"github.com/resale-hub/claim-engine/internal/infrastructure/lock"
	"github.com/resale-hub/claim-engine/internal/infrastructure/memory"
	"github.com/resale-hub/claim-engine/internal/infrastructure/sse"
	"github.com/resale-hub/claim-engine/internal/infrastructure/ws"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	listings := memory.NewListingRepository()
	ledger := memory.NewActivityRepository()
	bids := memory.NewBidRepository()
	payments := memory.NewPaymentRepository()
	locker := lock.NewKeyed()
	sseHub := sse.NewHub()
	wsHub := ws.NewHub(logger)

	notifySvc := appNotify.NewService(memory.NewNotificationRepository(), memory.NewDeduper(), sseHub, appNotify.DefaultDedupWindow, logger)
	convSvc := appConversation.NewService(memory.NewConversationRepository(), wsHub, logger)
	mgr := appPayment.NewManager(payments, listings, ledger, notifySvc, wsHub, locker, appPayment.Options{}, logger)
	claimSvc := appClaim.NewService(listings, ledger, locker, convSvc, notifySvc, mgr, wsHub, appClaim.Options{}, logger)
	biddingSvc := appBidding.NewService(listings, bids, ledger, locker, notifySvc, wsHub, appBidding.Options{}, logger)
	listingSvc := appListing.NewService(listings, ledger, bids, payments, logger)

	srv := NewServer(listingSvc, claimSvc, biddingSvc, mgr, notifySvc, convSvc, sseHub, wsHub, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		sseHub.Stop()
		wsHub.Close()
		ts.Close()
		mgr.Stop()
	})
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, user string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Name", strings.ToLower(user))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func createListing(t *testing.T, ts *httptest.Server, mode string) string {
	t.Helper()
	body := map[string]interface{}{
		"title":       "Denim jacket",
		"priceMode":   mode,
		"endDeadline": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	}
	if mode == string(listing.PriceModeMSL) {
		body["minePrice"] = 100
		body["stealPrice"] = 150
		body["lockPrice"] = 200
	} else {
		body["startingPrice"] = 50
		body["minIncrement"] = 5
	}
	resp, out := do(t, ts, http.MethodPost, "/v1/listings", "S", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	return out["listingId"].(string)
}

func TestClaimFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createListing(t, ts, "msl")

	resp, out := do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]string{"kind": "lock"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	rec := out["paymentRecord"].(map[string]interface{})
	assert.Equal(t, "B", rec["buyerId"])
	assert.Equal(t, string(payment.StatusPendingPayment), rec["status"])
	assert.NotEmpty(t, out["conversationId"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "C", map[string]string{"kind": "lock"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "LISTING_CLOSED", out["error"])

	resp, out = do(t, ts, http.MethodGet, "/v1/listings/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(listing.StatusLocked), out["status"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/payments/submitted", "C", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "NOT_SERVED_BUYER", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/payments/submitted", "B", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, string(payment.StatusSubmitted), out["status"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/payments/submitted", "B", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, out = do(t, ts, http.MethodGet, "/v1/listings/"+id+"/activity", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["activity"], 1)

	resp, out = do(t, ts, http.MethodGet, "/v1/notifications", "S", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := out["notifications"].([]interface{})
	require.NotEmpty(t, items)
	data := items[0].(map[string]interface{})["data"].(map[string]interface{})
	assert.Equal(t, string(notification.KindClaimOnListing), data["kind"])
}

func TestClaim_Errors(t *testing.T) {
	ts := newTestServer(t)
	id := createListing(t, ts, "msl")

	resp, out := do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "", map[string]string{"kind": "mine"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "NOT_AUTHENTICATED", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "S", map[string]string{"kind": "mine"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "SELF_ACTION", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]string{"kind": "buy"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_ACTION_KIND", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]interface{}{"kind": "mine", "extra": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PARAM", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]interface{}{"kind": "lock", "amount": 0.01})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_PRICE", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]interface{}{"kind": "steal", "amount": 1e9})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_PRICE", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/00000000-0000-0000-0000-000000000001/claims", "B", map[string]string{"kind": "mine"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "LISTING_MISSING", out["error"])

	resp, _ = do(t, ts, http.MethodGet, "/v1/listings/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBidFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createListing(t, ts, "bidding")

	resp, out := do(t, ts, http.MethodPost, "/v1/listings/"+id+"/bids", "A", map[string]float64{"amount": 60})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/bids", "B", map[string]float64{"amount": 62})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "BELOW_MIN_INCREMENT", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/bids", "B", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/bids", "B", map[string]float64{"amount": 70.004})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_AMOUNT", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings/"+id+"/bids", "B", map[string]float64{"amount": 70})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)

	resp, out = do(t, ts, http.MethodGet, "/v1/listings/"+id+"/bids", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["bids"], 2)

	resp, out = do(t, ts, http.MethodGet, "/v1/notifications", "A", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := out["notifications"].([]interface{})
	require.Len(t, items, 1)
	data := items[0].(map[string]interface{})["data"].(map[string]interface{})
	assert.Equal(t, string(notification.KindOutbid), data["kind"])
}

func TestCreateListing_Invalid(t *testing.T) {
	ts := newTestServer(t)

	resp, out := do(t, ts, http.MethodPost, "/v1/listings", "S", map[string]interface{}{
		"title":       "Boots",
		"priceMode":   "auction",
		"endDeadline": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_PARAM", out["error"])

	resp, out = do(t, ts, http.MethodPost, "/v1/listings", "S", map[string]interface{}{
		"title":       "Boots",
		"priceMode":   "msl",
		"minePrice":   100,
		"stealPrice":  150,
		"lockPrice":   200,
		"endDeadline": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_LISTING", out["error"])
}

func TestListingFeed_ReceivesEvents(t *testing.T) {
	ts := newTestServer(t)
	id := createListing(t, ts, "msl")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/listings/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var welcome map[string]string
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])

	resp, _ := do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]string{"kind": "mine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var types []event.Type
	for len(types) == 0 || types[len(types)-1] != event.TypeClaimApplied {
		var e event.Event
		require.NoError(t, conn.ReadJSON(&e))
		types = append(types, e.Type)
	}
	assert.Equal(t, []event.Type{event.TypeConversationOpened, event.TypeClaimApplied}, types)
}

func TestSSE_StreamsNotifications(t *testing.T) {
	ts := newTestServer(t)
	id := createListing(t, ts, "msl")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/notifications/sse", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "S")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), ": connected")

	claim, _ := do(t, ts, http.MethodPost, "/v1/listings/"+id+"/claims", "B", map[string]string{"kind": "mine"})
	require.Equal(t, http.StatusCreated, claim.StatusCode)

	var got strings.Builder
	for !strings.Contains(got.String(), "\n\n") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.Contains(t, got.String(), "event: notification")
	assert.Contains(t, got.String(), string(notification.KindClaimOnListing))
}
