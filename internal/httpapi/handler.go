// Package httpapi exposes the plan scheduler and account store as a thin JSON
// API. Authentication happens upstream; the caller's identity arrives in the
// X-User-ID header.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"meal-planner-api/internal/account"
	"meal-planner-api/internal/planner"
)

// Server wires the HTTP routes to the scheduler and account repository.
type Server struct {
	scheduler *planner.Scheduler
	accounts  *account.Repository
	now       func() time.Time
}

// NewServer builds the HTTP handler for the API.
func NewServer(scheduler *planner.Scheduler, accounts *account.Repository) http.Handler {
	s := &Server{scheduler: scheduler, accounts: accounts, now: time.Now}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /meal-plans/generate", s.withUser(s.handleGenerate))
	mux.HandleFunc("POST /meal-plans/generate-ahead", s.withUser(s.handleGenerateAhead))
	mux.HandleFunc("POST /meal-plans/complete", s.withUser(s.handleComplete))
	mux.HandleFunc("GET /meal-plans", s.withUser(s.handleListPlans))
	mux.HandleFunc("GET /dashboard/stats", s.withUser(s.handleDashboardStats))
	mux.HandleFunc("GET /users/profile", s.withUser(s.handleGetProfile))
	mux.HandleFunc("PUT /users/profile", s.withUser(s.handleUpdateProfile))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser extracts the caller identity set by the upstream auth layer.
func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
			return
		}
		h(w, r, userID)
	}
}

type generateRequest struct {
	Days int `json:"days"`
}

type completeRequest struct {
	Date string `json:"date"`
}

type generateAheadResponse struct {
	Message       string            `json:"message,omitempty"`
	MealPlan      *planner.MealPlan `json:"meal_plan,omitempty"`
	GeneratedDays int               `json:"generated_days"`
	RequestedDays int               `json:"requested_days"`
}

type dayEntryResponse struct {
	PlanID int64           `json:"plan_id"`
	Label  string          `json:"label"`
	Date   string          `json:"date"`
	Meals  planner.DayPlan `json:"meals"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, userID string) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Days < 1 {
		writeError(w, http.StatusBadRequest, "days must be at least 1")
		return
	}

	profile, err := s.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeAccountError(w, userID, err)
		return
	}

	plan, err := s.scheduler.GeneratePlan(r.Context(), userID, profile, req.Days)
	if err != nil {
		s.writePlanError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleGenerateAhead(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := s.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeAccountError(w, userID, err)
		return
	}

	res, err := s.scheduler.GenerateAhead(r.Context(), userID, profile)
	if err != nil {
		s.writePlanError(w, userID, err)
		return
	}

	resp := generateAheadResponse{
		MealPlan:      res.Plan,
		GeneratedDays: res.GeneratedDays,
		RequestedDays: res.RequestedDays,
	}
	switch {
	case res.RequestedDays == 0:
		resp.Message = "No additional days to generate"
		writeJSON(w, http.StatusOK, resp)
	case res.GeneratedDays == 0:
		// Nothing got persisted; the generator failed on the first batch.
		resp.Message = "Plan generation failed before any days were stored"
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, userID string) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := time.ParseInLocation(planner.DateFormat, req.Date, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	if err := s.scheduler.CompleteDay(r.Context(), userID, date); err != nil {
		if errors.Is(err, planner.ErrDayNotFound) {
			writeError(w, http.StatusNotFound, "meal plan for specified date not found")
			return
		}
		s.internalError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Day marked as complete"})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request, userID string) {
	plans, err := s.scheduler.Plans(r.Context(), userID)
	if err != nil {
		s.internalError(w, userID, err)
		return
	}
	if plans == nil {
		plans = []planner.MealPlan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"meal_plans": plans})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request, userID string) {
	today := planner.Midnight(s.now())
	// Week runs Monday to Sunday.
	offset := (int(today.Weekday()) + 6) % 7
	weekStart := today.AddDate(0, 0, -offset)
	weekEnd := weekStart.AddDate(0, 0, 6)

	todayEntry, err := s.scheduler.DayOn(r.Context(), userID, today)
	if err != nil {
		s.internalError(w, userID, err)
		return
	}
	weekEntries, err := s.scheduler.DaysBetween(r.Context(), userID, weekStart, weekEnd)
	if err != nil {
		s.internalError(w, userID, err)
		return
	}

	profile, err := s.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeAccountError(w, userID, err)
		return
	}

	weekPlans := make([]dayEntryResponse, 0, len(weekEntries))
	for _, e := range weekEntries {
		weekPlans = append(weekPlans, toDayEntryResponse(e))
	}
	var todayPlan *dayEntryResponse
	if todayEntry != nil {
		e := toDayEntryResponse(*todayEntry)
		todayPlan = &e
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"today": map[string]any{
			"date": today.Format(planner.DateFormat),
			"plan": todayPlan,
		},
		"week": map[string]any{
			"start_date": weekStart.Format(planner.DateFormat),
			"end_date":   weekEnd.Format(planner.DateFormat),
			"plans":      weekPlans,
		},
		"user_goals": map[string]any{
			"target_daily_calories": profile.TargetDailyCalories,
			"target_macros_pct":     profile.TargetMacrosPct,
		},
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := s.accounts.Get(r.Context(), userID)
	if err != nil {
		s.writeAccountError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	var update account.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile, err := s.accounts.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		s.writeAccountError(w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}

func (s *Server) writePlanError(w http.ResponseWriter, userID string, err error) {
	var genErr *planner.GenerationError
	switch {
	case errors.Is(err, planner.ErrCapacityExceeded):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &genErr):
		log.Printf("Plan generation failed for user %s (%d days): %v", userID, genErr.Days, genErr.Err)
		writeError(w, http.StatusBadGateway, "failed to generate meal plan")
	default:
		s.internalError(w, userID, err)
	}
}

func (s *Server) writeAccountError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, account.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.internalError(w, userID, err)
}

func (s *Server) internalError(w http.ResponseWriter, userID string, err error) {
	log.Printf("Request failed for user %s: %v", userID, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func toDayEntryResponse(e planner.DayEntry) dayEntryResponse {
	return dayEntryResponse{
		PlanID: e.PlanID,
		Label:  e.Label,
		Date:   e.Date.Format(planner.DateFormat),
		Meals:  e.Meals,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
