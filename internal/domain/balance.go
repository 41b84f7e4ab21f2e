package domain

import (
	"time"

	"github.com/google/uuid"
)

// BetStats are lifetime wagering aggregates kept on the balance row.
type BetStats struct {
	TotalStaked int64 `json:"total_staked"`
	TotalWon    int64 `json:"total_won"`
	BiggestWin  int64 `json:"biggest_win"`
	BetsPlaced  int64 `json:"bets_placed"`
	BetsWon     int64 `json:"bets_won"`
	BetsLost    int64 `json:"bets_lost"`
}

// Balance is the per-user wallet and progression state. Version increases
// on every write and guards optimistic updates.
type Balance struct {
	UserID         uuid.UUID `json:"user_id"`
	BetPoints      int64     `json:"bet_points"`
	Diamonds       int64     `json:"diamonds"`
	XP             int64     `json:"xp"`
	Level          int       `json:"level"`
	CurrentStreak  int       `json:"current_streak"`
	BestStreak     int       `json:"best_streak"`
	ActiveBetCount int       `json:"active_bet_count"`
	VIP            bool      `json:"vip"`
	Stats          BetStats  `json:"stats"`
	Opening        Opening   `json:"-"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Opening is the grant a user started with. Ledger entries account for
// everything after it.
type Opening struct {
	BetPoints int64 `json:"bet_points"`
	Diamonds  int64 `json:"diamonds"`
	XP        int64 `json:"xp"`
}

// Amount returns the balance held in the given currency.
func (b *Balance) Amount(c Currency) int64 {
	switch c {
	case CurrencyBetPoints:
		return b.BetPoints
	case CurrencyDiamonds:
		return b.Diamonds
	case CurrencyXP:
		return b.XP
	}
	return 0
}

// NewBalance creates a level-1 balance with an opening grant.
func NewBalance(userID uuid.UUID, betPoints, diamonds int64, now time.Time) *Balance {
	return &Balance{
		UserID:    userID,
		BetPoints: betPoints,
		Diamonds:  diamonds,
		Level:     1,
		Opening:   Opening{BetPoints: betPoints, Diamonds: diamonds},
		UpdatedAt: now,
	}
}
