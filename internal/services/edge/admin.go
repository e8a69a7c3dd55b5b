package edge

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/mybullandbear/bull-bear-cloud/internal/assetcache"
	"github.com/mybullandbear/bull-bear-cloud/internal/storage"
)

type handler struct {
	cache *assetcache.Cache
	store storage.Store
}

type installResponse struct {
	Status    string `json:"status"`
	Namespace string `json:"namespace"`
	Error     string `json:"error,omitempty"`
}

type namespacesResponse struct {
	Active     string   `json:"active"`
	Namespaces []string `json:"namespaces"`
}

// handleInstall re-runs the install lifecycle on demand. Retry policy
// belongs to the host; this endpoint is how the host retries.
func (h *handler) handleInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.cache.Install(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, installResponse{
			Status:    "failed",
			Namespace: h.cache.Namespace(),
			Error:     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, installResponse{
		Status:    "installed",
		Namespace: h.cache.Namespace(),
	})
}

// handleNamespaces lists namespaces on GET and deletes one on DELETE.
// Deletion is the host's explicit cleanup path; nothing is ever deleted
// implicitly by a version bump.
func (h *handler) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names, err := h.store.Namespaces(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, namespacesResponse{
			Active:     h.cache.Namespace(),
			Namespaces: names,
		})
	case http.MethodDelete:
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if err := h.store.DeleteNamespace(r.Context(), name); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode admin response: %v", err)
	}
}
