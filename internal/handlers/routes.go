package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Middleware *Middleware
	Points     *PointsHandler
	Habits     *HabitHandler
	Rewards    *RewardHandler
	Access     *AccessHandler
	DB         Pinger
}

// RegisterRoutes mounts the JSON API on mux
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	m := h.Middleware

	mux.HandleFunc("GET /healthz", healthz(h.DB))

	// Points
	mux.HandleFunc("GET /api/children/{childId}/points", m.RequireAuth(h.Points.GetPointsHistory))
	mux.HandleFunc("POST /api/children/{childId}/points/adjust", m.Protected(h.Points.AdjustPoints))
	mux.HandleFunc("POST /api/children/{childId}/points/reconcile", m.Protected(h.Points.Reconcile))

	// Habits and routines
	mux.HandleFunc("POST /api/habits/{habitId}/toggle", m.Protected(h.Habits.ToggleHabit))
	mux.HandleFunc("GET /api/routines/{routineId}/completion", m.RequireAuth(h.Habits.RoutineCompletion))
	mux.HandleFunc("GET /api/routines/{routineId}/streak", m.RequireAuth(h.Habits.RoutineStreak))

	// Behaviors and rewards
	mux.HandleFunc("POST /api/behaviors/{behaviorId}/record", m.Protected(h.Rewards.RecordBehavior))
	mux.HandleFunc("POST /api/rewards/{rewardId}/claim", m.Protected(h.Rewards.ClaimReward))

	// Professional access
	mux.HandleFunc("POST /api/children/{childId}/access-codes", m.Protected(h.Access.MintCode))
	mux.HandleFunc("POST /api/access-codes/redeem", m.Protected(h.Access.RedeemCode))
	mux.HandleFunc("DELETE /api/children/{childId}/access/{professionalId}", m.Protected(h.Access.RevokeAccess))
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			respondWithError(w, http.StatusServiceUnavailable, CodeInternal, "Database unavailable", "Health check failed", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
