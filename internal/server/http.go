package server

import (
	"PredictLedger/internal/core"
	"PredictLedger/internal/domain"
	"PredictLedger/internal/observability"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
)

// PrincipalHeader carries the authenticated caller, set by the fronting proxy
const PrincipalHeader = "X-Principal-ID"

const maxBodyBytes = 1 << 16

// API exposes the engine over HTTP/JSON.
type API struct {
	engine  *core.Engine
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewAPI(engine *core.Engine, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *API {
	return &API{
		engine:  engine,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

type handlerFunc func(r *http.Request, params map[string]string) (int, interface{}, error)

type route struct {
	method  string
	pattern string
	h       handlerFunc
}

func (a *API) routes() []route {
	return []route{
		{"POST", "/v1/deposits", a.deposit},
		{"POST", "/v1/markets", a.createMarket},
		{"GET", "/v1/markets", a.listMarkets},
		{"GET", "/v1/markets/{market_id}", a.getMarket},
		{"GET", "/v1/markets/{market_id}/price/{side}", a.price},
		{"POST", "/v1/markets/{market_id}/buy", a.buy},
		{"POST", "/v1/markets/{market_id}/sell", a.sell},
		{"GET", "/v1/markets/{market_id}/quote/buy", a.quoteBuy},
		{"GET", "/v1/markets/{market_id}/quote/sell", a.quoteSell},
		{"POST", "/v1/markets/{market_id}/resolve", a.resolve},
		{"POST", "/v1/markets/{market_id}/claim", a.claim},
		{"GET", "/v1/positions", a.positions},
		{"GET", "/v1/positions/{market_id}", a.position},
		{"GET", "/v1/balance", a.balance},
		{"GET", "/v1/claims", a.claims},
		{"GET", "/v1/admin", a.getAdmin},
		{"PUT", "/v1/admin", a.setAdmin},
	}
}

// Handler returns the full HTTP surface: API routes on a gateway mux plus
// health endpoints.
func (a *API) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	for _, rt := range a.routes() {
		if err := mux.HandlePath(rt.method, rt.pattern, a.wrap(rt.method+" "+rt.pattern, rt.h)); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}

	httpMux := http.NewServeMux()
	if a.health != nil {
		httpMux.HandleFunc("/healthz", a.health.LivenessHandler)
		httpMux.HandleFunc("/readyz", a.health.ReadinessHandler)
	}
	httpMux.Handle("/", mux)
	return httpMux, nil
}

func (a *API) wrap(name string, h handlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()

		status, body, err := h(r, params)
		if err != nil {
			status = writeError(w, err)
			if status >= http.StatusInternalServerError {
				a.log.Error().Err(err).Str("route", name).Msg("request failed")
			}
		} else {
			writeJSON(w, status, body)
		}

		if a.metrics != nil {
			a.metrics.APIRequests.WithLabelValues(name, strconv.Itoa(status)).Inc()
			a.metrics.APIDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
}

// --- Request bodies ---

type depositRequest struct {
	DepositID string `json:"deposit_id"`
	Amount    uint64 `json:"amount"`
}

type createMarketRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	InitialAmount uint64 `json:"initial_amount"`
}

type tradeRequest struct {
	Side   *domain.Side `json:"side"`
	Amount uint64       `json:"amount"`
	// MinOut is min_tokens_out for buys and min_payout for sells
	MinOut uint64 `json:"min_out"`
}

// Outcome is a pointer so an omitted field is not read as YES
type resolveRequest struct {
	Outcome *domain.Side `json:"outcome"`
}

type adminRequest struct {
	Admin uuid.UUID `json:"admin"`
}

// --- Handlers ---

func (a *API) deposit(r *http.Request, _ map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	balance, err := a.engine.Deposit(caller, req.DepositID, req.Amount)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]uint64{"balance": balance}, nil
}

func (a *API) createMarket(r *http.Request, _ map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	id, err := a.engine.CreateMarket(caller, req.Title, req.Description, req.InitialAmount)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, map[string]uint64{"market_id": id}, nil
}

func (a *API) listMarkets(_ *http.Request, _ map[string]string) (int, interface{}, error) {
	return http.StatusOK, a.engine.ListMarkets(), nil
}

func (a *API) getMarket(_ *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := marketID(params)
	if err != nil {
		return 0, nil, err
	}
	m, ok := a.engine.GetMarket(id)
	if !ok {
		return 0, nil, domain.ErrMarketNotFound
	}
	return http.StatusOK, m, nil
}

func (a *API) price(_ *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := marketID(params)
	if err != nil {
		return 0, nil, err
	}
	side, err := domain.ParseSide(params["side"])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	p, err := a.engine.Price(id, side)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]interface{}{"side": side, "price": p}, nil
}

func (a *API) buy(r *http.Request, params map[string]string) (int, interface{}, error) {
	caller, id, req, err := a.tradeArgs(r, params)
	if err != nil {
		return 0, nil, err
	}
	receipt, err := a.engine.Buy(caller, id, *req.Side, req.Amount, req.MinOut)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, receipt, nil
}

func (a *API) sell(r *http.Request, params map[string]string) (int, interface{}, error) {
	caller, id, req, err := a.tradeArgs(r, params)
	if err != nil {
		return 0, nil, err
	}
	receipt, err := a.engine.Sell(caller, id, *req.Side, req.Amount, req.MinOut)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, receipt, nil
}

func (a *API) tradeArgs(r *http.Request, params map[string]string) (uuid.UUID, uint64, tradeRequest, error) {
	var req tradeRequest
	caller, err := principal(r)
	if err != nil {
		return uuid.Nil, 0, req, err
	}
	id, err := marketID(params)
	if err != nil {
		return uuid.Nil, 0, req, err
	}
	if err := decodeBody(r, &req); err != nil {
		return uuid.Nil, 0, req, err
	}
	if req.Side == nil {
		return uuid.Nil, 0, req, fmt.Errorf("%w: side is required", errBadRequest)
	}
	return caller, id, req, nil
}

func (a *API) quoteBuy(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, side, amount, err := quoteArgs(r, params)
	if err != nil {
		return 0, nil, err
	}
	q, err := a.engine.QuoteBuy(id, side, amount)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, q, nil
}

func (a *API) quoteSell(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, side, amount, err := quoteArgs(r, params)
	if err != nil {
		return 0, nil, err
	}
	q, err := a.engine.QuoteSell(id, side, amount)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, q, nil
}

func (a *API) resolve(r *http.Request, params map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := marketID(params)
	if err != nil {
		return 0, nil, err
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if req.Outcome == nil {
		return 0, nil, fmt.Errorf("%w: outcome is required", errBadRequest)
	}
	res, err := a.engine.Resolve(caller, id, *req.Outcome)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, res, nil
}

func (a *API) claim(r *http.Request, params map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := marketID(params)
	if err != nil {
		return 0, nil, err
	}
	c, err := a.engine.Claim(caller, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, c, nil
}

func (a *API) positions(r *http.Request, _ map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, a.engine.GetPositions(caller), nil
}

func (a *API) position(r *http.Request, params map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	id, err := marketID(params)
	if err != nil {
		return 0, nil, err
	}
	pos, ok := a.engine.GetPosition(caller, id)
	if !ok {
		return http.StatusNotFound, errorBody{Code: "PositionNotFound", Message: "no position in market"}, nil
	}
	return http.StatusOK, pos, nil
}

func (a *API) balance(r *http.Request, _ map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]uint64{"balance": a.engine.GetBalance(caller)}, nil
}

func (a *API) claims(r *http.Request, _ map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, a.engine.GetClaims(caller), nil
}

func (a *API) getAdmin(_ *http.Request, _ map[string]string) (int, interface{}, error) {
	admin, ok := a.engine.Admin()
	if !ok {
		return http.StatusOK, map[string]interface{}{"admin": nil}, nil
	}
	return http.StatusOK, map[string]interface{}{"admin": admin}, nil
}

func (a *API) setAdmin(r *http.Request, _ map[string]string) (int, interface{}, error) {
	caller, err := principal(r)
	if err != nil {
		return 0, nil, err
	}
	var req adminRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, nil, err
	}
	if err := a.engine.SetAdmin(caller, req.Admin); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]interface{}{"admin": req.Admin}, nil
}

// --- Helpers ---

func principal(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.Header.Get(PrincipalHeader))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errMissingPrincipal
	}
	return id, nil
}

func marketID(params map[string]string) (uint64, error) {
	id, err := strconv.ParseUint(params["market_id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: market_id: %v", errBadRequest, err)
	}
	return id, nil
}

func quoteArgs(r *http.Request, params map[string]string) (uint64, domain.Side, uint64, error) {
	id, err := marketID(params)
	if err != nil {
		return 0, 0, 0, err
	}
	q := r.URL.Query()
	side, err := domain.ParseSide(q.Get("side"))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: amount: %v", errBadRequest, err)
	}
	return id, side, amount, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// ServeHTTP runs the HTTP server until ctx is cancelled.
func ServeHTTP(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
