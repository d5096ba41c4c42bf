package http

import (
	"net/http"

	"freelance/internal/core"
)

type clientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Notes   string `json:"notes"`
}

func (req clientRequest) apply(c *core.Client) {
	c.Name = req.Name
	c.Email = req.Email
	c.Phone = req.Phone
	c.Company = req.Company
	c.Notes = req.Notes
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.svc.Clients.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(r.Context(), w, "list_clients", err)
		return
	}
	if clients == nil {
		clients = []core.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c := core.Client{UserID: userIDFrom(r.Context())}
	req.apply(&c)
	created, err := s.svc.Clients.Create(r.Context(), c)
	if err != nil {
		s.writeServiceError(r.Context(), w, "create_client", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.svc.Clients.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(r.Context(), w, "get_client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c := core.Client{ID: id, UserID: userIDFrom(r.Context())}
	req.apply(&c)
	updated, err := s.svc.Clients.Update(r.Context(), c)
	if err != nil {
		s.writeServiceError(r.Context(), w, "update_client", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Clients.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		s.writeServiceError(r.Context(), w, "delete_client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
