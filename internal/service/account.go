package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/ledger"
	"github.com/betpoints/platform/internal/repository"
	"github.com/google/uuid"
)

// Grant is the opening balance of a new account.
type Grant struct {
	BetPoints int64
	Diamonds  int64
}

// DefaultGrant is what every new player starts with.
var DefaultGrant = Grant{BetPoints: 1000, Diamonds: 10}

// AccountStore is what AccountService reads and writes.
type AccountStore interface {
	repository.BalanceStore
	repository.LedgerRepository
}

// AccountService opens balances and audits them against the ledger.
type AccountService struct {
	store  AccountStore
	grant  Grant
	logger *slog.Logger
	now    func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(store AccountStore, grant Grant, logger *slog.Logger) *AccountService {
	return &AccountService{store: store, grant: grant, logger: logger, now: time.Now}
}

// Open returns the user's balance, creating it with the opening grant on
// first use.
func (s *AccountService) Open(ctx context.Context, userID uuid.UUID, vip bool) (*domain.Balance, error) {
	bal, err := s.store.GetBalance(ctx, userID)
	if err == nil {
		return bal, nil
	}
	if !domain.IsCode(err, domain.CodeNotFound) {
		return nil, err
	}

	bal = domain.NewBalance(userID, s.grant.BetPoints, s.grant.Diamonds, s.now())
	bal.VIP = vip
	if err := s.store.CreateBalance(ctx, bal); err != nil {
		// Lost a race with a concurrent Open.
		if domain.IsCode(err, domain.CodeValidation) {
			return s.store.GetBalance(ctx, userID)
		}
		return nil, err
	}
	s.logger.Info("balance opened", "user_id", userID, "bet_points", bal.BetPoints, "diamonds", bal.Diamonds, "vip", vip)
	return bal, nil
}

// Balance returns the current balance.
func (s *AccountService) Balance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

// Audit replays the user's ledger against the stored balance.
func (s *AccountService) Audit(ctx context.Context, userID uuid.UUID) (*ledger.ReplayResult, error) {
	bal, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("list ledger entries", err)
	}
	res := ledger.Replay(bal, entries)
	if !res.AllPassed {
		s.logger.Error("ledger audit failed", "user_id", userID, "invariants", res.Invariants)
	}
	return &res, nil
}
