package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/paper-trader/internal/accounts"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/quote"
	"github.com/trogers1052/paper-trader/internal/session"
)

// Trader settles trades and values portfolios
type Trader interface {
	Buy(ctx context.Context, username, symbol string, shares int64) (*ledger.Settlement, error)
	Sell(ctx context.Context, username, symbol string, shares int64) (*ledger.Settlement, error)
	Portfolio(ctx context.Context, username string) (*ledger.Portfolio, error)
	RefreshPrices(ctx context.Context, username string) (*ledger.RefreshResult, error)
	History(ctx context.Context, username string, limit int) ([]*models.Transaction, error)
}

// Accounts manages registration, credentials and cash
type Accounts interface {
	Register(ctx context.Context, input accounts.RegisterInput) (*models.Account, error)
	Authenticate(ctx context.Context, username, password string) (*models.Account, error)
	AddCash(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)
	Reset(ctx context.Context, username string) error
}

// Sessions maps bearer tokens to usernames
type Sessions interface {
	Create(ctx context.Context, username string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// Pinger reports database health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	trader   Trader
	accounts Accounts
	sessions Sessions
	quotes   quote.Provider
	db       Pinger
	metrics  *Metrics
}

// NewHandler creates a new Handler. db and metrics may be nil.
func NewHandler(trader Trader, accts Accounts, sessions Sessions, quotes quote.Provider, db Pinger, metrics *Metrics) *Handler {
	return &Handler{
		trader:   trader,
		accounts: accts,
		sessions: sessions,
		quotes:   quotes,
		db:       db,
		metrics:  metrics,
	}
}

// Register handles POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		Confirmation string `json:"confirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Register(r.Context(), accounts.RegisterInput{
		Username:     req.Username,
		Password:     req.Password,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), account.Username)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"username": account.Username,
		"cash":     account.Cash,
		"token":    token,
	})
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), account.Username)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"username": account.Username,
		"token":    token,
	})
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), tokenFrom(r.Context())); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quoteResponse struct {
	*models.Quote
	Display string `json:"display"`
}

// GetQuote handles GET /quote/{symbol}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := quote.Normalize(mux.Vars(r)["symbol"])

	q, err := h.quotes.Lookup(r.Context(), symbol)
	if errors.Is(err, quote.ErrNotFound) {
		respondError(w, ledger.ErrInvalidOrder)
		return
	}
	if err != nil {
		log.WithError(err).WithField("symbol", symbol).Warn("Quote lookup failed")
		respondError(w, ledger.ErrQuoteUnavailable)
		return
	}

	respondJSON(w, http.StatusOK, quoteResponse{Quote: q, Display: ledger.FormatUSD(q.Price)})
}

type tradeRequest struct {
	Symbol string      `json:"symbol"`
	Shares json.Number `json:"shares"`
}

type settlementResponse struct {
	*ledger.Settlement
	AmountDisplay string `json:"amount_display"`
	CashDisplay   string `json:"cash_display"`
}

// Buy handles POST /buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, models.TradeTypePurchase, h.trader.Buy)
}

// Sell handles POST /sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, models.TradeTypeSale, h.trader.Sell)
}

type settleFunc func(ctx context.Context, username, symbol string, shares int64) (*ledger.Settlement, error)

func (h *Handler) trade(w http.ResponseWriter, r *http.Request, side string, settle settleFunc) {
	var req tradeRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// fractional or non-numeric share counts are a quantity error, not a malformed body
	shares, err := strconv.ParseInt(req.Shares.String(), 10, 64)
	if err != nil {
		h.metrics.observeTrade(side, "rejected")
		respondError(w, ledger.ErrInvalidQuantity)
		return
	}

	s, err := settle(r.Context(), usernameFrom(r.Context()), req.Symbol, shares)
	if err != nil {
		h.metrics.observeTrade(side, outcome(err))
		respondError(w, err)
		return
	}
	h.metrics.observeTrade(side, "settled")

	respondJSON(w, http.StatusOK, settlementResponse{
		Settlement:    s,
		AmountDisplay: ledger.FormatUSD(s.Amount),
		CashDisplay:   ledger.FormatUSD(s.Cash),
	})
}

func outcome(err error) string {
	if status := errorStatus(err); status >= http.StatusInternalServerError {
		return "failed"
	}
	return "rejected"
}

type portfolioResponse struct {
	*ledger.Portfolio
	CashDisplay  string `json:"cash_display"`
	TotalDisplay string `json:"total_display"`
}

func newPortfolioResponse(p *ledger.Portfolio) portfolioResponse {
	return portfolioResponse{
		Portfolio:    p,
		CashDisplay:  ledger.FormatUSD(p.Cash),
		TotalDisplay: ledger.FormatUSD(p.Total),
	}
}

// GetPortfolio handles GET /portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.trader.Portfolio(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newPortfolioResponse(p))
}

type failedSymbol struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// RefreshPortfolio handles POST /portfolio/refresh
func (h *Handler) RefreshPortfolio(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())

	result, err := h.trader.RefreshPrices(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}

	p, err := h.trader.Portfolio(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}

	updated := result.Updated
	if updated == nil {
		updated = []string{}
	}
	failed := make([]failedSymbol, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, failedSymbol{Symbol: f.Symbol, Error: f.Err.Error()})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"updated":   updated,
		"failed":    failed,
		"portfolio": newPortfolioResponse(p),
	})
}

// GetHistory handles GET /history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := h.trader.History(r.Context(), usernameFrom(r.Context()), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if history == nil {
		history = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, history)
}

// AddCash handles POST /cash
func (h *Handler) AddCash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cash, err := h.accounts.AddCash(r.Context(), usernameFrom(r.Context()), req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cash":         cash,
		"cash_display": ledger.FormatUSD(cash),
	})
}

// Reset handles POST /reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	username := usernameFrom(r.Context())
	if err := h.accounts.Reset(r.Context(), username); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.trader.Portfolio(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newPortfolioResponse(p))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			log.WithError(err).Warn("Health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidOrder),
		errors.Is(err, accounts.ErrMissingUsername),
		errors.Is(err, accounts.ErrMissingPassword),
		errors.Is(err, accounts.ErrPasswordMismatch),
		errors.Is(err, accounts.ErrInvalidAmount),
		errors.Is(err, accounts.ErrAmountTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, accounts.ErrInvalidCredentials),
		errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNoSuchPosition),
		errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrQuoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		message = "internal server error"
	}
	respondMessage(w, status, message)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
