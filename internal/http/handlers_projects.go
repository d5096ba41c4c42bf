package http

import (
	"net/http"

	"freelance/internal/core"
)

type projectRequest struct {
	ClientID      int64     `json:"client_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Deadline      core.Date `json:"deadline"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
}

// apply copies the request onto p. Empty status fields leave p unchanged.
func (req projectRequest) apply(p *core.Project) error {
	p.ClientID = req.ClientID
	p.Name = req.Name
	p.Description = req.Description
	p.Deadline = req.Deadline
	if req.Status != "" {
		st, err := core.ParseProjectStatus(req.Status)
		if err != nil {
			return err
		}
		p.Status = st
	}
	if req.PaymentStatus != "" {
		ps, err := core.ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			return err
		}
		p.PaymentStatus = ps
	}
	return nil
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(r.Context(), w, "list_projects", err)
		return
	}
	if projects == nil {
		projects = []core.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := core.Project{UserID: userIDFrom(r.Context())}
	if err := req.apply(&p); err != nil {
		s.writeServiceError(r.Context(), w, "create_project", err)
		return
	}
	created, err := s.svc.Projects.Create(r.Context(), p)
	if err != nil {
		s.writeServiceError(r.Context(), w, "create_project", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Projects.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(r.Context(), w, "get_project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.svc.Projects.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(r.Context(), w, "update_project", err)
		return
	}
	if err := req.apply(&p); err != nil {
		s.writeServiceError(r.Context(), w, "update_project", err)
		return
	}
	updated, err := s.svc.Projects.Update(r.Context(), p)
	if err != nil {
		s.writeServiceError(r.Context(), w, "update_project", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Projects.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		s.writeServiceError(r.Context(), w, "delete_project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := core.ParseProjectStatus(req.Status)
	if err != nil {
		s.writeServiceError(r.Context(), w, "set_project_status", err)
		return
	}
	p, err := s.svc.Projects.SetStatus(r.Context(), userIDFrom(r.Context()), id, st)
	if err != nil {
		s.writeServiceError(r.Context(), w, "set_project_status", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSetProjectPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ps, err := core.ParsePaymentStatus(req.Status)
	if err != nil {
		s.writeServiceError(r.Context(), w, "set_payment_status", err)
		return
	}
	p, err := s.svc.Projects.SetPaymentStatus(r.Context(), userIDFrom(r.Context()), id, ps)
	if err != nil {
		s.writeServiceError(r.Context(), w, "set_payment_status", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
