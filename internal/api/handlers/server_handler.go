package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/isdelr/ender-local/internal/services"
)

// ServerHandler handles HTTP requests related to servers.
type ServerHandler struct {
	service services.ServerServiceProvider
}

// NewServerHandler creates a new ServerHandler.
func NewServerHandler(service services.ServerServiceProvider) *ServerHandler {
	return &ServerHandler{service: service}
}

// GetAll handles the request to get all servers.
func (h *ServerHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	servers, err := h.service.GetAllServers()
	if err != nil {
		writeError(w, err, "Failed to retrieve servers")
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

// Get handles the request to get a single server by its ID.
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	server, err := h.service.GetServerByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to retrieve server")
		return
	}
	writeJSON(w, http.StatusOK, server)
}

// Create handles the request to create a new server.
func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	server, err := h.service.CreateServer(req)
	if err != nil {
		writeError(w, err, "Failed to create server")
		return
	}
	writeJSON(w, http.StatusCreated, server)
}

// Update handles the request to update an existing server.
func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	server, err := h.service.UpdateServer(chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err, "Failed to update server")
		return
	}
	writeJSON(w, http.StatusOK, server)
}

// Delete handles the request to delete a server.
func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteServer(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "Failed to delete server")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProperties returns the server.properties contents as a JSON object.
func (h *ServerHandler) GetProperties(w http.ResponseWriter, r *http.Request) {
	props, err := h.service.GetProperties(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to read server properties")
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// UpdatePropertiesPayload is the expected JSON body for a properties update.
type UpdatePropertiesPayload struct {
	Set    map[string]string `json:"set"`
	Remove []string          `json:"remove"`
}

// UpdateProperties merges the payload into server.properties.
func (h *ServerHandler) UpdateProperties(w http.ResponseWriter, r *http.Request) {
	var payload UpdatePropertiesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	props, err := h.service.UpdateProperties(chi.URLParam(r, "id"), payload.Set, payload.Remove)
	if err != nil {
		writeError(w, err, "Failed to update server properties")
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// GetOps returns the operator roster.
func (h *ServerHandler) GetOps(w http.ResponseWriter, r *http.Request) {
	ops, err := h.service.GetOps(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to read operators")
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

type statusResponse struct {
	Status      models.ServerStatus `json:"status"`
	Description string              `json:"description"`
}

// GetStatus returns the lifecycle label of a server.
func (h *ServerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to read server status")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: status, Description: status.Describe()})
}

// SetStatus records the label reported by the process supervisor.
func (h *ServerHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status *models.ServerStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Status == nil {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}

	server, err := h.service.SetStatus(chi.URLParam(r, "id"), *payload.Status)
	if err != nil {
		writeError(w, err, "Failed to set server status")
		return
	}
	writeJSON(w, http.StatusOK, server)
}
