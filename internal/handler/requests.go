package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/betpoints/platform/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SelectionRequest is one leg of a PlaceBet body.
type SelectionRequest struct {
	MatchID uuid.UUID `json:"match_id" validate:"required"`
	Market  string    `json:"market" validate:"required,oneof=MATCH_RESULT TOTAL_GOALS BOTH_TEAMS_SCORE NEXT_GOAL NEXT_CORNER NEXT_CARD"`
	Line    int       `json:"line" validate:"gte=0,lte=200"`
	Outcome string    `json:"outcome" validate:"required,oneof=HOME DRAW AWAY OVER UNDER YES NO NONE"`
}

// PlaceBetRequest is the PlaceBet body.
type PlaceBetRequest struct {
	Kind       string             `json:"kind" validate:"required,oneof=SINGLE ACCUMULATOR LIVE"`
	Stake      int64              `json:"stake" validate:"required,gt=0"`
	Boost      int                `json:"boost" validate:"gte=0,lte=3"`
	Selections []SelectionRequest `json:"selections" validate:"required,min=1,max=20,dive"`
}

// Validate checks the request shape. Business rules run in the service.
func (p *PlaceBetRequest) Validate() error {
	return validationError(validate.Struct(p))
}

// Params converts the request for the placement coordinator.
func (p *PlaceBetRequest) Params(userID uuid.UUID, role string) domain.PlaceBetParams {
	params := domain.PlaceBetParams{
		UserID: userID,
		Role:   role,
		Kind:   domain.BetKind(p.Kind),
		Stake:  p.Stake,
		Boost:  domain.BoostTier(p.Boost),
	}
	for _, s := range p.Selections {
		params.Selections = append(params.Selections, domain.SelectionRequest{
			MatchID: s.MatchID,
			Market:  domain.MarketKey{Kind: domain.MarketKind(s.Market), Line: s.Line},
			Outcome: domain.Outcome(s.Outcome),
		})
	}
	return params
}

// SelectionResultRequest records a manual selection result.
type SelectionResultRequest struct {
	Result string `json:"result" validate:"required,oneof=WON LOST VOID"`
}

func (s *SelectionResultRequest) Validate() error {
	return validationError(validate.Struct(s))
}

// MatchStateRequest pushes match state from an operator.
type MatchStateRequest struct {
	HomeTeam string              `json:"home_team"`
	AwayTeam string              `json:"away_team"`
	Status   string              `json:"status" validate:"required,oneof=SCHEDULED LIVE FINISHED"`
	Home     int                 `json:"home" validate:"gte=0"`
	Away     int                 `json:"away" validate:"gte=0"`
	Minute   int                 `json:"minute" validate:"gte=0,lte=130"`
	Derby    bool                `json:"derby"`
	Featured bool                `json:"featured"`
	Markets  []domain.MarketOdds `json:"markets"`
}

func (m *MatchStateRequest) Validate() error {
	return validationError(validate.Struct(m))
}

// Snapshot builds the match snapshot for id.
func (m *MatchStateRequest) Snapshot(id uuid.UUID) *domain.MatchSnapshot {
	snap := &domain.MatchSnapshot{
		ID:       id,
		HomeTeam: m.HomeTeam,
		AwayTeam: m.AwayTeam,
		Status:   domain.MatchStatus(m.Status),
		Score:    domain.Score{Home: m.Home, Away: m.Away},
		Minute:   m.Minute,
		Derby:    m.Derby,
		Featured: m.Featured,
	}
	snap.SetMarkets(m.Markets)
	return snap
}

// validationError flattens validator output into a VALIDATION_ERROR.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrValidation(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return domain.ErrValidation(strings.Join(msgs, "; "))
}
