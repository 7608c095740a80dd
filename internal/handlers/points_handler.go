package handlers

import (
	"net/http"
	"strconv"

	"routinely/internal/service"
)

// PointsHandler serves a child's balance and ledger
type PointsHandler struct {
	ledger   *service.LedgerService
	balances *service.BalanceService
	authz    *service.Authorizer
}

// NewPointsHandler creates a new points handler
func NewPointsHandler(ledger *service.LedgerService, balances *service.BalanceService, authz *service.Authorizer) *PointsHandler {
	return &PointsHandler{
		ledger:   ledger,
		balances: balances,
		authz:    authz,
	}
}

type adjustPointsRequest struct {
	Points      int    `json:"points" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

// AdjustPoints applies a manual adjustment to a child's balance
func (h *PointsHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	var req adjustPointsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.ledger.AdjustPoints(r.Context(), caller, r.PathValue("childId"), req.Points, req.Description)
	if err != nil {
		respondWithServiceError(w, "Failed to adjust points", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetPointsHistory returns the balance, stats and a page of transactions
func (h *PointsHandler) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	history, err := h.ledger.GetPointsHistory(r.Context(), caller, r.PathValue("childId"), limit, offset)
	if err != nil {
		respondWithServiceError(w, "Failed to load points history", err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Reconcile repairs drift between a child's cached balance and the ledger
func (h *PointsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())
	childID := r.PathValue("childId")

	if _, err := h.authz.CanWrite(r.Context(), caller, childID); err != nil {
		respondWithServiceError(w, "Failed to authorize reconcile", err)
		return
	}

	report, err := h.balances.Reconcile(r.Context(), childID, true)
	if err != nil {
		respondWithServiceError(w, "Failed to reconcile balance", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// queryInt parses an optional integer query parameter; missing means zero
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, CodeValidation, name+" must be an integer", "", nil)
		return 0, false
	}
	return n, true
}
