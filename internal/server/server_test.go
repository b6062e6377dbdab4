package server_test

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/domain"
	"PredictLedger/internal/observability"
	"PredictLedger/internal/server"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func newTestServer(t *testing.T) (*httptest.Server, *core.Engine) {
	t.Helper()
	engine := core.NewEngine(core.Config{})
	health := observability.NewHealthChecker()
	health.SetReady(true)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	handler, err := server.NewAPI(engine, health, metrics, zerolog.Nop()).Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, engine
}

func do(t *testing.T, srv *httptest.Server, method, path string, caller *uuid.UUID, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if caller != nil {
		req.Header.Set(server.PrincipalHeader, caller.String())
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAPI_TradeFlow(t *testing.T) {
	srv, engine := newTestServer(t)

	status, body := do(t, srv, "POST", "/v1/deposits", &alice, map[string]interface{}{"deposit_id": "d-1", "amount": 2000})
	if status != http.StatusOK || body["balance"] != float64(2000) {
		t.Fatalf("deposit: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/markets", &alice, map[string]interface{}{"title": "Rain?", "initial_amount": 1000})
	if status != http.StatusCreated || body["market_id"] != float64(1) {
		t.Fatalf("create market: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/markets/1/quote/buy?side=yes&amount=100", nil, nil)
	if status != http.StatusOK || body["tokens_received"] != float64(123) {
		t.Fatalf("quote: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/markets/1/buy", &alice, map[string]interface{}{"side": "yes", "amount": 100, "min_out": 123})
	if status != http.StatusOK || body["tokens_received"] != float64(123) {
		t.Fatalf("buy: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/balance", &alice, nil)
	if status != http.StatusOK || body["balance"] != float64(900) {
		t.Fatalf("balance: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/positions/1", &alice, nil)
	if status != http.StatusOK || body["yes_tokens"] != float64(123) {
		t.Fatalf("position: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/markets/1/price/no", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("price: %d %v", status, body)
	}

	if err := engine.VerifyLedger(); err != nil {
		t.Fatalf("ledger: %v", err)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	srv, engine := newTestServer(t)
	if _, err := engine.Deposit(alice, "d-1", 2000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.CreateMarket(alice, "Rain?", "", 1000); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		caller   *uuid.UUID
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"missing principal", "GET", "/v1/balance", nil, nil, http.StatusUnauthorized, "Unauthenticated"},
		{"unknown market", "GET", "/v1/markets/99", nil, nil, http.StatusNotFound, "MarketNotFound"},
		{"bad market id", "GET", "/v1/markets/abc", nil, nil, http.StatusBadRequest, "BadRequest"},
		{"bad side", "GET", "/v1/markets/1/price/maybe", nil, nil, http.StatusBadRequest, "BadRequest"},
		{"non-admin resolve", "POST", "/v1/markets/1/resolve", &bob, map[string]string{"outcome": "yes"}, http.StatusForbidden, "Unauthorized"},
		{"claim on open market", "POST", "/v1/markets/1/claim", &alice, nil, http.StatusConflict, "MarketClosed"},
		{"deposit below minimum", "POST", "/v1/deposits", &bob, map[string]interface{}{"amount": 10}, http.StatusUnprocessableEntity, "InvalidAmount"},
		{"slippage", "POST", "/v1/markets/1/buy", &alice, map[string]interface{}{"side": "no", "amount": 100, "min_out": 1000}, http.StatusUnprocessableEntity, "SlippageExceeded"},
		{"unknown field", "POST", "/v1/markets/1/buy", &alice, map[string]interface{}{"outcome": "no"}, http.StatusBadRequest, "BadRequest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.caller, tt.body)
			if status != tt.wantCode {
				t.Errorf("status: got %d, want %d (%v)", status, tt.wantCode, body)
			}
			if body["code"] != tt.wantErr {
				t.Errorf("code: got %v, want %s", body["code"], tt.wantErr)
			}
		})
	}
}

func TestAPI_AdminResolveAndClaim(t *testing.T) {
	srv, engine := newTestServer(t)
	if _, err := engine.Deposit(alice, "d-1", 2000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.Deposit(bob, "d-2", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.CreateMarket(alice, "Rain?", "", 1000); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Buy(bob, 1, domain.Yes, 500, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}

	status, body := do(t, srv, "PUT", "/v1/admin", &alice, map[string]string{"admin": alice.String()})
	if status != http.StatusOK {
		t.Fatalf("set admin: %d %v", status, body)
	}
	status, body = do(t, srv, "GET", "/v1/admin", nil, nil)
	if status != http.StatusOK || body["admin"] != alice.String() {
		t.Fatalf("get admin: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/markets/1/resolve", &alice, map[string]string{"outcome": "yes"})
	if status != http.StatusOK || body["winning_outcome"] != "yes" {
		t.Fatalf("resolve: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/markets/1/claim", &bob, nil)
	if status != http.StatusOK || body["reward_amount"] != float64(1499) {
		t.Fatalf("claim: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/markets/1/claim", &bob, nil)
	if status != http.StatusConflict || body["code"] != "AlreadyClaimed" {
		t.Fatalf("second claim: %d %v", status, body)
	}
}

func TestAPI_MissingSideOrOutcomeRejected(t *testing.T) {
	srv, engine := newTestServer(t)
	if _, err := engine.Deposit(alice, "d-1", 2000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.CreateMarket(alice, "Rain?", "", 1000); err != nil {
		t.Fatalf("create: %v", err)
	}
	seq := engine.GetSequence()

	status, body := do(t, srv, "POST", "/v1/markets/1/resolve", &alice, map[string]string{})
	if status != http.StatusBadRequest || body["code"] != "BadRequest" {
		t.Fatalf("resolve without outcome: %d %v", status, body)
	}
	status, body = do(t, srv, "POST", "/v1/markets/1/buy", &alice, map[string]interface{}{"amount": 100})
	if status != http.StatusBadRequest || body["code"] != "BadRequest" {
		t.Fatalf("buy without side: %d %v", status, body)
	}
	status, body = do(t, srv, "POST", "/v1/markets/1/sell", &alice, map[string]interface{}{"amount": 1})
	if status != http.StatusBadRequest || body["code"] != "BadRequest" {
		t.Fatalf("sell without side: %d %v", status, body)
	}

	m, ok := engine.GetMarket(1)
	if !ok {
		t.Fatal("market missing")
	}
	if !m.Market.IsOpen() || m.Market.WinningOutcome != nil {
		t.Errorf("market changed: status %s, outcome %v", m.Market.Status, m.Market.WinningOutcome)
	}
	if got := engine.GetBalance(alice); got != 1000 {
		t.Errorf("balance: got %d, want 1000", got)
	}
	if got := engine.GetSequence(); got != seq {
		t.Errorf("sequence: got %d, want %d", got, seq)
	}
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: got %d", path, resp.StatusCode)
		}
	}
}

func TestGRPCServer_Health(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := server.NewGRPCServer("bufnet", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ServeListener(ctx, lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		rpcCtx, rpcCancel := context.WithTimeout(ctx, 2*time.Second)
		defer rpcCancel()
		resp, err := client.Check(rpcCtx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		return resp.Status
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("before ready: got %v", got)
	}
	srv.SetServing(true)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after ready: got %v", got)
	}
}
