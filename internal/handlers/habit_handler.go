package handlers

import (
	"net/http"

	"routinely/internal/service"
)

// HabitHandler serves habit toggles and routine progress
type HabitHandler struct {
	habits   *service.HabitService
	routines *service.RoutineService
}

// NewHabitHandler creates a new habit handler
func NewHabitHandler(habits *service.HabitService, routines *service.RoutineService) *HabitHandler {
	return &HabitHandler{
		habits:   habits,
		routines: routines,
	}
}

type toggleHabitRequest struct {
	ChildID   string `json:"child_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Completed *bool  `json:"completed" validate:"required"`
	Notes     string `json:"notes" validate:"max=1000"`
}

// ToggleHabit marks a habit done or not done for a date
func (h *HabitHandler) ToggleHabit(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	var req toggleHabitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.habits.SetHabitCompletion(r.Context(), caller, service.HabitCompletion{
		HabitID:   r.PathValue("habitId"),
		ChildID:   req.ChildID,
		Date:      req.Date,
		Completed: *req.Completed,
		Notes:     req.Notes,
	})
	if err != nil {
		respondWithServiceError(w, "Failed to toggle habit", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// RoutineCompletion returns how much of a routine a child finished on a date
func (h *HabitHandler) RoutineCompletion(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())
	query := r.URL.Query()

	completion, err := h.routines.Completion(r.Context(), caller, r.PathValue("routineId"), query.Get("child_id"), query.Get("date"))
	if err != nil {
		respondWithServiceError(w, "Failed to load routine completion", err)
		return
	}
	respondJSON(w, http.StatusOK, completion)
}

// RoutineStreak returns the child's current streak for a routine
func (h *HabitHandler) RoutineStreak(w http.ResponseWriter, r *http.Request) {
	caller, _ := GetCallerFromContext(r.Context())

	streak, err := h.routines.Streak(r.Context(), caller, r.PathValue("routineId"), r.URL.Query().Get("child_id"))
	if err != nil {
		respondWithServiceError(w, "Failed to load routine streak", err)
		return
	}
	respondJSON(w, http.StatusOK, streak)
}
