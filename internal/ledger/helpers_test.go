package ledger

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/quote"
)

// memStore is an in-memory Store with one mutex per account
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*memAccount
	nextID   int64

	// failAppend makes AppendTransaction fail after staging, to prove rollback
	failAppend error
}

type memAccount struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]*models.Position
	history   []*models.Transaction
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*memAccount)}
}

func (s *memStore) addAccount(username string, cash decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = &memAccount{cash: cash, positions: make(map[string]*models.Position)}
}

func (s *memStore) account(username string) (*memAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

func (s *memStore) Account(ctx context.Context, username string) (*models.Account, error) {
	a, err := s.account(username)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return &models.Account{Username: username, Cash: a.cash}, nil
}

func (s *memStore) Position(ctx context.Context, username, symbol string) (*models.Position, error) {
	a, err := s.account(username)
	if err != nil {
		return nil, ErrNoSuchPosition
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.positions[symbol]
	if !ok {
		return nil, ErrNoSuchPosition
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Positions(ctx context.Context, username string) ([]*models.Position, error) {
	a, err := s.account(username)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*models.Position, 0, len(a.positions))
	for _, p := range a.positions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *memStore) Transactions(ctx context.Context, username string, limit int) ([]*models.Transaction, error) {
	a, err := s.account(username)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*models.Transaction
	for i := len(a.history) - 1; i >= 0; i-- {
		cp := *a.history[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) WithAccount(ctx context.Context, username string, fn func(tx AccountTx) error) error {
	a, err := s.account(username)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tx := &memTx{store: s, cash: a.cash, positions: make(map[string]*models.Position)}
	for k, p := range a.positions {
		cp := *p
		tx.positions[k] = &cp
	}
	if err := fn(tx); err != nil {
		return err
	}

	a.cash = tx.cash
	a.positions = tx.positions
	for _, t := range tx.appended {
		t.ID = atomic.AddInt64(&s.nextID, 1)
		a.history = append(a.history, t)
	}
	return nil
}

type memTx struct {
	store     *memStore
	cash      decimal.Decimal
	positions map[string]*models.Position
	appended  []*models.Transaction
}

func (t *memTx) Cash(ctx context.Context) (decimal.Decimal, error) { return t.cash, nil }

func (t *memTx) SetCash(ctx context.Context, cash decimal.Decimal) error {
	t.cash = cash
	return nil
}

func (t *memTx) Position(ctx context.Context, symbol string) (*models.Position, error) {
	p, ok := t.positions[symbol]
	if !ok {
		return nil, ErrNoSuchPosition
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) SavePosition(ctx context.Context, p *models.Position) error {
	cp := *p
	t.positions[p.Symbol] = &cp
	return nil
}

func (t *memTx) DeletePosition(ctx context.Context, symbol string) error {
	delete(t.positions, symbol)
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, tr *models.Transaction) error {
	t.appended = append(t.appended, tr)
	return t.store.failAppend
}

// stubQuotes serves fixed prices; unknown symbols return quote.ErrNotFound
type stubQuotes struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  int
}

func newStubQuotes() *stubQuotes {
	return &stubQuotes{prices: make(map[string]decimal.Decimal), errs: make(map[string]error)}
}

func (q *stubQuotes) set(symbol, price string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[symbol] = decimal.RequireFromString(price)
	delete(q.errs, symbol)
}

func (q *stubQuotes) fail(symbol string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs[symbol] = err
}

func (q *stubQuotes) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	symbol = quote.Normalize(symbol)
	if err, ok := q.errs[symbol]; ok {
		return nil, err
	}
	price, ok := q.prices[symbol]
	if !ok {
		return nil, quote.ErrNotFound
	}
	return &models.Quote{Symbol: symbol, Name: symbol + " Inc.", Price: price}, nil
}

func (q *stubQuotes) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// MockPublisher is a testify mock of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTradeSettled(ctx context.Context, event *models.TradeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// signedShares returns the share delta a history entry applied to its position
func signedShares(t *models.Transaction) int64 {
	if t.TradeType == models.TradeTypeSale {
		return -t.Shares
	}
	return t.Shares
}
