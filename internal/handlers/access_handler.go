package handlers

import (
	"net/http"

	"routinely/internal/service"
)

// AccessHandler serves professional access codes
type AccessHandler struct {
	access *service.AccessService
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(access *service.AccessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// MintCode creates a one-time code for sharing a child with a professional
func (h *AccessHandler) MintCode(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	code, err := h.access.MintCode(r.Context(), caller, r.PathValue("childId"))
	if err != nil {
		respondWithServiceError(w, "Failed to create access code", err)
		return
	}
	respondJSON(w, http.StatusCreated, code)
}

type redeemCodeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// RedeemCode grants the calling professional access to the code's child
func (h *AccessHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	var req redeemCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	grant, err := h.access.RedeemCode(r.Context(), caller, req.Code)
	if err != nil {
		respondWithServiceError(w, "Failed to redeem access code", err)
		return
	}
	respondJSON(w, http.StatusOK, grant)
}

// RevokeAccess removes a professional's access to a child
func (h *AccessHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	if err := h.access.RevokeAccess(r.Context(), caller, r.PathValue("childId"), r.PathValue("professionalId")); err != nil {
		respondWithServiceError(w, "Failed to revoke access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
