package admin

import (
	"context"
	"net/http"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/handler"
	"github.com/betpoints/platform/internal/ledger"
	"github.com/betpoints/platform/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Settler is the settlement side of the engine.
type Settler interface {
	Settle(ctx context.Context, betID uuid.UUID) (*domain.SettleResult, error)
	OnMatchFinished(ctx context.Context, matchID uuid.UUID) (settlement.Report, error)
	ApplyMatchState(ctx context.Context, snap *domain.MatchSnapshot) (settlement.Report, error)
	SetSelectionResult(ctx context.Context, selectionID uuid.UUID, result domain.SelectionResult) error
	SweepPending(ctx context.Context) (settlement.Report, error)
}

// Auditor replays a user's ledger.
type Auditor interface {
	Audit(ctx context.Context, userID uuid.UUID) (*ledger.ReplayResult, error)
}

// SettlementAdminHandler exposes manual settlement controls.
type SettlementAdminHandler struct {
	settler Settler
	auditor Auditor
}

// NewSettlementAdminHandler creates a SettlementAdminHandler.
func NewSettlementAdminHandler(settler Settler, auditor Auditor) *SettlementAdminHandler {
	return &SettlementAdminHandler{settler: settler, auditor: auditor}
}

// SettleBet handles POST /admin/bets/{betID}/settle.
func (h *SettlementAdminHandler) SettleBet(w http.ResponseWriter, r *http.Request) {
	betID, ok := pathID(w, r, "betID")
	if !ok {
		return
	}
	res, err := h.settler.Settle(r.Context(), betID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, res)
}

// MatchFinished handles POST /admin/matches/{matchID}/finished.
func (h *SettlementAdminHandler) MatchFinished(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	report, err := h.settler.OnMatchFinished(r.Context(), matchID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, report)
}

// PutMatch handles PUT /admin/matches/{matchID}.
func (h *SettlementAdminHandler) PutMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	var req handler.MatchStateRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		handler.RespondError(w, err)
		return
	}
	report, err := h.settler.ApplyMatchState(r.Context(), req.Snapshot(matchID))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, report)
}

// SetSelectionResult handles POST /admin/selections/{selectionID}/result.
func (h *SettlementAdminHandler) SetSelectionResult(w http.ResponseWriter, r *http.Request) {
	selectionID, ok := pathID(w, r, "selectionID")
	if !ok {
		return
	}
	var req handler.SelectionResultRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		handler.RespondError(w, err)
		return
	}
	if err := h.settler.SetSelectionResult(r.Context(), selectionID, domain.SelectionResult(req.Result)); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}

// Sweep handles POST /admin/settlement/sweep.
func (h *SettlementAdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.settler.SweepPending(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, report)
}

// Audit handles GET /admin/users/{userID}/audit.
func (h *SettlementAdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	res, err := h.auditor.Audit(r.Context(), userID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, res)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid "+param))
		return uuid.Nil, false
	}
	return id, true
}
