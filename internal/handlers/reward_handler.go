package handlers

import (
	"net/http"

	"routinely/internal/service"
)

// RewardHandler serves reward claims and behavior records, the two ways
// a parent moves points outside of routines
type RewardHandler struct {
	rewards   *service.RewardService
	behaviors *service.BehaviorService
}

// NewRewardHandler creates a new reward handler
func NewRewardHandler(rewards *service.RewardService, behaviors *service.BehaviorService) *RewardHandler {
	return &RewardHandler{
		rewards:   rewards,
		behaviors: behaviors,
	}
}

type claimRewardRequest struct {
	ChildID string `json:"child_id" validate:"omitempty,uuid"`
	Notes   string `json:"notes" validate:"max=1000"`
}

// ClaimReward redeems a reward against the child's balance
func (h *RewardHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	var req claimRewardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.rewards.ClaimReward(r.Context(), caller, service.RewardClaimRequest{
		RewardID: r.PathValue("rewardId"),
		ChildID:  req.ChildID,
		Notes:    req.Notes,
	})
	if err != nil {
		respondWithServiceError(w, "Failed to claim reward", err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

type recordBehaviorRequest struct {
	ChildID string `json:"child_id" validate:"required,uuid"`
	Notes   string `json:"notes" validate:"max=1000"`
}

// RecordBehavior logs a behavior for a child and applies its points
func (h *RewardHandler) RecordBehavior(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	var req recordBehaviorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.behaviors.RecordBehavior(r.Context(), caller, r.PathValue("behaviorId"), req.ChildID, req.Notes)
	if err != nil {
		respondWithServiceError(w, "Failed to record behavior", err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
