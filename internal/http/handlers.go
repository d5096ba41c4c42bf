package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"freelance/internal/core"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady pings the store with a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status, code := "ready", http.StatusOK

	if s.ready == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	User  core.User `json:"user"`
	Token string    `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := s.svc.Auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeServiceError(r.Context(), w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(r.Context(), w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Auth.Me(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(r.Context(), w, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan string `json:"plan"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := core.ParsePlanType(req.Plan)
	if err != nil {
		s.writeServiceError(r.Context(), w, "change_plan", err)
		return
	}
	u, err := s.svc.Auth.ChangePlan(r.Context(), userIDFrom(r.Context()), plan)
	if err != nil {
		s.writeServiceError(r.Context(), w, "change_plan", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	asOf := s.now()
	if v := r.URL.Query().Get("asOf"); v != "" {
		// An unescaped "+05:45" offset arrives as " 05:45".
		t, err := time.Parse(time.RFC3339, strings.ReplaceAll(v, " ", "+"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", map[string]string{"asOf": "must be RFC3339, with a + offset percent-encoded as %2B"})
			return
		}
		asOf = t
	}
	d, err := s.svc.Dashboard.Stats(r.Context(), userIDFrom(r.Context()), asOf)
	if err != nil {
		s.writeServiceError(r.Context(), w, "dashboard_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDashboardPlan(w http.ResponseWriter, r *http.Request) {
	limits, err := s.svc.Dashboard.Plan(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(r.Context(), w, "dashboard_plan", err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}
