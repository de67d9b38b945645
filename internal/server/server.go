// Package server exposes the session over a local JSON API. Read endpoints
// render the session's view structs; mutating endpoints call its handlers.
// Validation failures map to 422, missing market data to degraded payloads,
// persistence failures to 500.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradeview/internal/ledger"
	"tradeview/internal/provider"
	"tradeview/internal/scheduler"
	"tradeview/internal/session"
)

// Server wires the HTTP mux to one session and its refresh scheduler.
type Server struct {
	addr    string
	sess    *session.Session
	refresh *scheduler.Refresher
}

// New builds a Server listening on addr.
func New(addr string, sess *session.Session, refresh *scheduler.Refresher) *Server {
	return &Server{addr: addr, sess: sess, refresh: refresh}
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/dashboard", s.dashboardHandler)
	mux.HandleFunc("/api/watchlist", s.watchlistHandler)
	mux.HandleFunc("/api/history", s.historyHandler)
	mux.HandleFunc("/api/stats", s.statsHandler)
	mux.HandleFunc("/api/quote", s.quoteHandler)
	mux.HandleFunc("/api/holdings", s.holdingsHandler)
	mux.HandleFunc("/api/analytics", s.analyticsHandler)
	mux.HandleFunc("/api/trades", s.tradesHandler)
	mux.HandleFunc("/api/order", s.orderHandler)
	mux.HandleFunc("/api/settings", s.settingsHandler)
	mux.HandleFunc("/api/reset", s.resetHandler)
	mux.HandleFunc("/api/cache/clear", s.cacheClearHandler)
	mux.HandleFunc("/api/export", s.exportHandler)
	mux.HandleFunc("/api/import", s.importHandler)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: logRequests(mux),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	log.Printf("[INFO] listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.Printf("[WARN] shutdown: %v", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[INFO] %s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return false
	}
	return true
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.sess.RenderDashboard())
}

func (s *Server) watchlistHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sess.RenderWatchlist())
	case http.MethodPost:
		var req struct {
			Symbols []string `json:"symbols"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "parse body: %v", err)
			return
		}
		if err := s.sess.SetWatchlist(req.Symbols); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"watchlist": s.sess.Watchlist()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
	}
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}
	window := provider.Window(queryOr(r, "window", "6mo"))
	granularity := provider.Granularity(queryOr(r, "granularity", "1d"))
	if !granularity.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "invalid granularity %q", granularity)
		return
	}

	view, err := s.sess.RenderHistory(symbol, window, granularity)
	if errors.Is(err, provider.ErrUnavailable) {
		// Degraded payload, not a server error: the UI renders a placeholder.
		writeJSON(w, http.StatusOK, map[string]string{
			"symbol": symbol, "error": err.Error(),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}
	window := provider.Window(queryOr(r, "window", "6mo"))
	granularity := provider.Granularity(queryOr(r, "granularity", "1d"))
	if !granularity.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "invalid granularity %q", granularity)
		return
	}
	start, _ := strconv.Atoi(queryOr(r, "start", "0"))
	end, _ := strconv.Atoi(queryOr(r, "end", "-1"))

	stats, err := s.sess.RenderWindowStats(symbol, window, granularity, start, end)
	if errors.Is(err, provider.ErrUnavailable) {
		writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusUnprocessableEntity, "symbol is required")
		return
	}
	q, src, err := s.sess.Quote(symbol)
	if errors.Is(err, provider.ErrUnavailable) {
		writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": q.Symbol,
		"last":   q.Last,
		"time":   q.Time,
		"source": src.String(),
	})
}

func (s *Server) holdingsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	view, err := s.sess.RenderHoldings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) analyticsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	view, err := s.sess.RenderAnalytics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) tradesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	trades, err := s.sess.Trades(r.URL.Query().Get("symbol"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) orderHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req session.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "parse order: %v", err)
		return
	}

	res, err := s.sess.PlaceOrder(req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, session.ErrNotMarketable),
		errors.Is(err, session.ErrInsufficientCash),
		errors.Is(err, ledger.ErrInsufficientPosition):
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
	case errors.Is(err, provider.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "%v", err)
	default:
		// Could be a bad ticket or a persistence failure. Bad tickets never
		// reach the ledger, so anything wrapped as "order not placed" is 500.
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, "%v", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "order not placed: %v", err)
	}
}

// isValidationError distinguishes ticket validation failures (pre-ledger)
// from persistence failures.
func isValidationError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"empty symbol", "quantity must be", "side must be",
		"order type must be", "limit price must be"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type settingsUpdate struct {
	Page         *string  `json:"page"`
	Symbol       *string  `json:"symbol"`
	Watchlist    []string `json:"watchlist"`
	ProviderMode *string  `json:"provider_mode"`
	Theme        *string  `json:"theme"`
	Live         *bool    `json:"live"`
	IntervalSec  *int     `json:"interval_sec"`
	InitialCash  *float64 `json:"initial_cash"`
}

func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req settingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "parse settings: %v", err)
			return
		}
		if err := s.applySettings(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "%v", err)
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}

	view, err := s.sess.RenderSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) applySettings(req settingsUpdate) error {
	if req.Page != nil {
		if err := s.sess.Navigate(*req.Page); err != nil {
			return err
		}
	}
	if req.Symbol != nil {
		if err := s.sess.SelectSymbol(*req.Symbol); err != nil {
			return err
		}
	}
	if len(req.Watchlist) > 0 {
		if err := s.sess.SetWatchlist(req.Watchlist); err != nil {
			return err
		}
	}
	if req.ProviderMode != nil {
		if err := s.sess.SetProviderMode(*req.ProviderMode); err != nil {
			return err
		}
	}
	if req.Theme != nil {
		if err := s.sess.SetTheme(*req.Theme); err != nil {
			return err
		}
	}
	if req.InitialCash != nil {
		if err := s.sess.SetInitialCash(*req.InitialCash); err != nil {
			return err
		}
	}
	if req.IntervalSec != nil {
		d := time.Duration(*req.IntervalSec) * time.Second
		s.sess.SetInterval(d)
		s.refresh.SetInterval(s.sess.Interval())
	}
	if req.Live != nil {
		s.sess.SetLive(*req.Live)
		if err := s.refresh.Apply(*req.Live); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		StartingCash float64 `json:"starting_cash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "parse body: %v", err)
		return
	}
	if err := s.sess.ResetAccount(req.StartingCash); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"starting_cash": req.StartingCash})
}

func (s *Server) cacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.sess.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
	if err := s.sess.ExportTrades(w); err != nil {
		log.Printf("[ERROR] export: %v", err)
	}
}

func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	n, err := s.sess.ImportTrades(r.Body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "imported %d trades: %v", n, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
