package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/postpilot/reddit-affiliate-bot/internal/models"
	"github.com/postpilot/reddit-affiliate-bot/internal/opportunity"
	"github.com/postpilot/reddit-affiliate-bot/internal/pipeline"
	"github.com/postpilot/reddit-affiliate-bot/internal/scheduler"
	"github.com/postpilot/reddit-affiliate-bot/internal/store"
)

// Server exposes the pipeline triggers and scheduler operations over
// HTTP for the dashboard.
type Server struct {
	store     store.Store
	pipeline  *pipeline.Service
	manager   *opportunity.Manager
	scheduler *scheduler.Service
}

// NewRouter builds the HTTP routes.
func NewRouter(st store.Store, pipe *pipeline.Service, mgr *opportunity.Manager, sched *scheduler.Service) *mux.Router {
	s := &Server{store: st, pipeline: pipe, manager: mgr, scheduler: sched}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods("GET")

	router.HandleFunc("/api/scan", s.triggerScan).Methods("POST")
	router.HandleFunc("/api/opportunities", s.listOpportunities).Methods("GET")
	router.HandleFunc("/api/opportunities/promote", s.promoteOpportunities).Methods("POST")
	router.HandleFunc("/api/opportunities/process", s.processOpportunities).Methods("POST")
	router.HandleFunc("/api/opportunities/{id}/ignore", s.ignoreOpportunity).Methods("POST")

	router.HandleFunc("/api/posts/scheduled", s.listScheduledPosts).Methods("GET")
	router.HandleFunc("/api/posts/{id}/schedule", s.schedulePost).Methods("POST")
	router.HandleFunc("/api/posts/{id}/cancel", s.cancelPost).Methods("POST")
	router.HandleFunc("/api/posts/{id}/reschedule", s.reschedulePost).Methods("POST")

	router.HandleFunc("/api/ratelimit", s.rateLimitStatus).Methods("GET")
	router.HandleFunc("/api/activities", s.listActivities).Methods("GET")

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// triggerScan kicks off a keyword scan in the background, like the
// dashboard's manual "scan now" button.
func (s *Server) triggerScan(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	go func() {
		if _, err := s.pipeline.TriggerKeywordScan(context.Background(), limit); err != nil {
			logrus.Errorf("Manual keyword scan failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "keyword scan triggered"})
}

func (s *Server) listOpportunities(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.OpportunityNew
	}

	opportunities, err := s.store.ListOpportunitiesByStatus(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, opportunities)
}

func (s *Server) promoteOpportunities(w http.ResponseWriter, r *http.Request) {
	promoted, err := s.pipeline.TriggerOpportunityScoring(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"promoted": promoted})
}

func (s *Server) processOpportunities(w http.ResponseWriter, r *http.Request) {
	result, err := s.pipeline.TriggerOpportunityProcessing(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) ignoreOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.manager.Ignore(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.OpportunityIgnored})
}

func (s *Server) listScheduledPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.scheduler.ScheduledPosts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

type scheduleRequest struct {
	Time time.Time `json:"time"`
}

func (s *Server) schedulePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time.IsZero() {
		writeError(w, http.StatusBadRequest, "body must be {\"time\": RFC3339}")
		return
	}

	if err := s.scheduler.SchedulePost(r.Context(), id, req.Time); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post_id": id, "scheduled_time": req.Time})
}

func (s *Server) cancelPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if !s.scheduler.CancelScheduledPost(r.Context(), id) {
		writeError(w, http.StatusNotFound, "no scheduled job for post")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post_id": id, "status": models.PostDraft})
}

func (s *Server) reschedulePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time.IsZero() {
		writeError(w, http.StatusBadRequest, "body must be {\"time\": RFC3339}")
		return
	}

	if err := s.scheduler.ReschedulePost(r.Context(), id, req.Time); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post_id": id, "scheduled_time": req.Time})
}

func (s *Server) rateLimitStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.RateLimitStatus())
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	activities, err := s.store.ListActivities(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
