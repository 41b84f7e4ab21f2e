// Package memory is an in-process Store. It serves local runs without
// Postgres and the coordinator tests; its atomicity comes from one mutex.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/repository"
	"github.com/google/uuid"
)

type outboxRow struct {
	draft     domain.OutboxDraft
	published bool
}

// Store keeps every table in maps guarded by a single RWMutex. Values are
// copied on the way in and out so callers never share state with it.
type Store struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]domain.Balance
	bets     map[uuid.UUID]domain.Bet
	entries  map[uuid.UUID][]domain.LedgerEntry
	matches  map[uuid.UUID]domain.MatchSnapshot
	outbox   []outboxRow
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		balances: make(map[uuid.UUID]domain.Balance),
		bets:     make(map[uuid.UUID]domain.Bet),
		entries:  make(map[uuid.UUID][]domain.LedgerEntry),
		matches:  make(map[uuid.UUID]domain.MatchSnapshot),
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) GetBalance(_ context.Context, userID uuid.UUID) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bal, ok := s.balances[userID]
	if !ok {
		return nil, domain.ErrNotFound("balance", userID.String())
	}
	return &bal, nil
}

func (s *Store) CreateBalance(_ context.Context, bal *domain.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[bal.UserID]; ok {
		return domain.ErrValidation("balance already exists for " + bal.UserID.String())
	}
	s.balances[bal.UserID] = *bal
	return nil
}

func (s *Store) ApplyLedgerEntries(_ context.Context, userID uuid.UUID, expectedVersion int64, batch domain.LedgerBatch) (*domain.Balance, error) {
	if batch.Balance.UserID != userID {
		return nil, fmt.Errorf("apply ledger entries: batch balance belongs to %s, not %s", batch.Balance.UserID, userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var settled domain.Bet
	if st := batch.Settle; st != nil {
		bet, ok := s.bets[st.BetID]
		if !ok || bet.Status != domain.BetSettling || bet.ClaimID == nil || *bet.ClaimID != st.ClaimID {
			return nil, domain.ErrClaimConflict
		}
		settled = *bet.WithSettlement(*st)
		settled.ClaimID, settled.ClaimedAt = bet.ClaimID, bet.ClaimedAt
	}

	current, ok := s.balances[userID]
	if !ok {
		return nil, domain.ErrNotFound("balance", userID.String())
	}
	if current.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	next := batch.Balance
	if next.BetPoints < 0 || next.Diamonds < 0 || next.XP < 0 {
		return nil, domain.ErrNegativeBalance
	}
	if batch.Place != nil {
		if _, dup := s.bets[batch.Place.ID]; dup {
			return nil, fmt.Errorf("insert bet: duplicate id %s", batch.Place.ID)
		}
	}

	next.Opening = current.Opening
	next.VIP = current.VIP
	next.Version = current.Version + 1
	s.balances[userID] = next

	if batch.Settle != nil {
		s.bets[settled.ID] = settled
	}
	if batch.Place != nil {
		s.bets[batch.Place.ID] = cloneBet(*batch.Place)
	}
	s.entries[userID] = append(s.entries[userID], batch.Entries...)
	for _, evt := range batch.Events {
		s.outbox = append(s.outbox, outboxRow{draft: evt})
	}
	return &next, nil
}

func (s *Store) GetBet(_ context.Context, id uuid.UUID) (*domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bet, ok := s.bets[id]
	if !ok {
		return nil, domain.ErrNotFound("bet", id.String())
	}
	out := cloneBet(bet)
	return &out, nil
}

func (s *Store) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]domain.Bet, error) {
	bets := s.filter(func(b *domain.Bet) bool { return b.UserID == userID })
	slices.Reverse(bets)
	return head(bets, limit), nil
}

func (s *Store) ListPlacedSince(_ context.Context, userID uuid.UUID, since time.Time) ([]domain.Bet, error) {
	return s.filter(func(b *domain.Bet) bool {
		return b.UserID == userID && b.PlacedAt.After(since)
	}), nil
}

func (s *Store) ListPending(_ context.Context, limit int) ([]domain.Bet, error) {
	bets := s.filter(func(b *domain.Bet) bool { return b.Status == domain.BetPending })
	return head(bets, limit), nil
}

func (s *Store) ListPendingByMatch(_ context.Context, matchID uuid.UUID) ([]domain.Bet, error) {
	return s.filter(func(b *domain.Bet) bool {
		return b.Status == domain.BetPending && slices.Contains(b.MatchIDs(), matchID)
	}), nil
}

func (s *Store) ListStaleSettling(_ context.Context, claimedBefore time.Time, limit int) ([]domain.Bet, error) {
	bets := s.filter(func(b *domain.Bet) bool {
		return b.Status == domain.BetSettling && b.ClaimedAt != nil && b.ClaimedAt.Before(claimedBefore)
	})
	slices.SortFunc(bets, func(a, b domain.Bet) int { return a.ClaimedAt.Compare(*b.ClaimedAt) })
	return head(bets, limit), nil
}

func (s *Store) ClaimBet(_ context.Context, betID, claimID uuid.UUID, now, staleBefore time.Time) (*domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bet, ok := s.bets[betID]
	if !ok {
		return nil, domain.ErrNotFound("bet", betID.String())
	}
	stale := bet.Status == domain.BetSettling && bet.ClaimedAt != nil && bet.ClaimedAt.Before(staleBefore)
	if bet.Status != domain.BetPending && !stale {
		return nil, domain.ErrClaimConflict
	}
	claimedAt := now
	bet.Status = domain.BetSettling
	bet.ClaimID = &claimID
	bet.ClaimedAt = &claimedAt
	s.bets[betID] = bet
	out := cloneBet(bet)
	return &out, nil
}

func (s *Store) SetExternalResult(_ context.Context, selectionID uuid.UUID, result domain.SelectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, bet := range s.bets {
		if bet.Status.Terminal() {
			continue
		}
		for i := range bet.Selections {
			if bet.Selections[i].ID == selectionID {
				bet = cloneBet(bet)
				bet.Selections[i].ExternalResult = result
				s.bets[id] = bet
				return nil
			}
		}
	}
	return domain.ErrNotFound("open selection", selectionID.String())
}

func (s *Store) ListEntries(_ context.Context, userID uuid.UUID) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries[userID]), nil
}

func (s *Store) GetSnapshot(_ context.Context, matchID uuid.UUID) (*domain.MatchSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	out := cloneSnapshot(m)
	return &out, nil
}

func (s *Store) UpsertSnapshot(_ context.Context, m *domain.MatchSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = cloneSnapshot(*m)
	return nil
}

func (s *Store) FetchUnpublished(_ context.Context, limit int) ([]domain.OutboxDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OutboxDraft
	for _, row := range s.outbox {
		if limit > 0 && len(out) == limit {
			break
		}
		if !row.published {
			out = append(out, row.draft)
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, eventIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if slices.Contains(eventIDs, s.outbox[i].draft.EventID) {
			s.outbox[i].published = true
		}
	}
	return nil
}

// Events returns every outbox event written so far, published or not.
func (s *Store) Events() []domain.OutboxDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OutboxDraft, len(s.outbox))
	for i, row := range s.outbox {
		out[i] = row.draft
	}
	return out
}

// filter returns copies of matching bets ordered by placement time.
func (s *Store) filter(keep func(*domain.Bet) bool) []domain.Bet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bet
	for _, b := range s.bets {
		if keep(&b) {
			out = append(out, cloneBet(b))
		}
	}
	slices.SortFunc(out, func(a, b domain.Bet) int {
		if c := a.PlacedAt.Compare(b.PlacedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func head(bets []domain.Bet, limit int) []domain.Bet {
	if limit > 0 && len(bets) > limit {
		return bets[:limit]
	}
	return bets
}

func cloneBet(b domain.Bet) domain.Bet {
	b.Selections = slices.Clone(b.Selections)
	return b
}

func cloneSnapshot(m domain.MatchSnapshot) domain.MatchSnapshot {
	if m.BaseOdds == nil {
		return m
	}
	odds := make(map[domain.MarketKey]map[domain.Outcome]int64, len(m.BaseOdds))
	for k, v := range m.BaseOdds {
		inner := make(map[domain.Outcome]int64, len(v))
		for o, p := range v {
			inner[o] = p
		}
		odds[k] = inner
	}
	m.BaseOdds = odds
	return m
}
