package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Registration and login errors
var (
	ErrMissingUsername    = errors.New("must provide username")
	ErrMissingPassword    = errors.New("must provide password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAmountTooLarge     = errors.New("amount exceeds the maximum cash balance")
)

// Store is the account persistence the service needs
type Store interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	Account(ctx context.Context, username string) (*models.Account, error)
	ResetAccount(ctx context.Context, username string, cash decimal.Decimal) error
	WithAccount(ctx context.Context, username string, fn func(tx ledger.AccountTx) error) error
}

// RegisterInput is a registration request
type RegisterInput struct {
	Username     string
	Password     string
	Confirmation string
}

// Service handles registration, login and cash management
type Service struct {
	store        Store
	startingCash decimal.Decimal
	cost         int
}

// NewService creates a new Service that funds new and reset accounts with startingCash
func NewService(store Store, startingCash decimal.Decimal) *Service {
	return &Service{
		store:        store,
		startingCash: ledger.Round(startingCash),
		cost:         bcrypt.DefaultCost,
	}
}

// Register creates an account funded with the starting cash
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	if input.Password == "" {
		return nil, ErrMissingPassword
	}
	if input.Password != input.Confirmation {
		return nil, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Username:     username,
		PasswordHash: string(hash),
		Cash:         s.startingCash,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	log.WithField("username", username).Info("Account registered")
	return account, nil
}

// Authenticate checks a username and password pair
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	account, err := s.store.Account(ctx, username)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// AddCash credits amount to the account and returns the new balance
func (s *Service) AddCash(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = ledger.Round(amount)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.GreaterThan(ledger.MaxCash) {
		return decimal.Zero, ErrAmountTooLarge
	}

	var balance decimal.Decimal
	err := s.store.WithAccount(ctx, username, func(tx ledger.AccountTx) error {
		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}
		balance = ledger.Round(cash.Add(amount))
		if balance.GreaterThan(ledger.MaxCash) {
			return ErrAmountTooLarge
		}
		return tx.SetCash(ctx, balance)
	})
	if err != nil {
		return decimal.Zero, err
	}

	log.WithFields(log.Fields{
		"username": username,
		"amount":   amount.StringFixed(2),
		"cash":     balance.StringFixed(2),
	}).Info("Cash added")
	return balance, nil
}

// Reset clears positions and history and restores the starting cash
func (s *Service) Reset(ctx context.Context, username string) error {
	if err := s.store.ResetAccount(ctx, username, s.startingCash); err != nil {
		return err
	}
	log.WithField("username", username).Info("Account reset")
	return nil
}
