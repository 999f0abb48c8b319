package handlers

import (
	"net/http"

	"github.com/isdelr/ender-local/internal/instance"
	"github.com/isdelr/ender-local/internal/models"
)

// CatalogHandler serves the fixed tables clients build forms from.
type CatalogHandler struct{}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// ServerTypes lists the display names of the supported distributions in
// declaration order.
func (h *CatalogHandler) ServerTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.AllServerTypes())
}

// PropertyDefaults lists the default server.properties entries in order.
func (h *CatalogHandler) PropertyDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, instance.CommonDefaults())
}
