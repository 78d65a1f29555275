package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/paper-trader/internal/accounts"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/quote"
	"github.com/trogers1052/paper-trader/internal/session"
)

// MockTrader is a mock implementation of Trader
type MockTrader struct {
	mock.Mock
}

func (m *MockTrader) Buy(ctx context.Context, username, symbol string, shares int64) (*ledger.Settlement, error) {
	args := m.Called(ctx, username, symbol, shares)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Settlement), args.Error(1)
}

func (m *MockTrader) Sell(ctx context.Context, username, symbol string, shares int64) (*ledger.Settlement, error) {
	args := m.Called(ctx, username, symbol, shares)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Settlement), args.Error(1)
}

func (m *MockTrader) Portfolio(ctx context.Context, username string) (*ledger.Portfolio, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Portfolio), args.Error(1)
}

func (m *MockTrader) RefreshPrices(ctx context.Context, username string) (*ledger.RefreshResult, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RefreshResult), args.Error(1)
}

func (m *MockTrader) History(ctx context.Context, username string, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// MockAccounts is a mock implementation of Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Register(ctx context.Context, input accounts.RegisterInput) (*models.Account, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) AddCash(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, username, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccounts) Reset(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

// memSessions is an in-memory Sessions
type memSessions struct {
	tokens map[string]string
	next   int
}

func newMemSessions() *memSessions {
	return &memSessions{tokens: map[string]string{}}
}

func (s *memSessions) Create(ctx context.Context, username string) (string, error) {
	s.next++
	token := "token-" + username + "-" + strconv.Itoa(s.next)
	s.tokens[token] = username
	return token, nil
}

func (s *memSessions) Lookup(ctx context.Context, token string) (string, error) {
	username, ok := s.tokens[token]
	if !ok {
		return "", session.ErrNotFound
	}
	return username, nil
}

func (s *memSessions) Delete(ctx context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

// stubQuotes serves fixed quotes or a fixed error
type stubQuotes struct {
	quotes map[string]*models.Quote
	err    error
}

func (q *stubQuotes) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	if q.err != nil {
		return nil, q.err
	}
	if found, ok := q.quotes[quote.Normalize(symbol)]; ok {
		return found, nil
	}
	return nil, quote.ErrNotFound
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type testServer struct {
	router   http.Handler
	trader   *MockTrader
	accounts *MockAccounts
	sessions *memSessions
	quotes   *stubQuotes
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		trader:   new(MockTrader),
		accounts: new(MockAccounts),
		sessions: newMemSessions(),
		quotes:   &stubQuotes{quotes: map[string]*models.Quote{}},
		registry: prometheus.NewRegistry(),
	}
	handler := NewHandler(ts.trader, ts.accounts, ts.sessions, ts.quotes, stubPinger{}, NewMetrics(ts.registry))
	ts.router = SetupRoutes(handler, ts.registry)
	return ts
}

// login returns a valid bearer token for username
func (ts *testServer) login(t *testing.T, username string) string {
	t.Helper()
	token, err := ts.sessions.Create(context.Background(), username)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
