package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"spark_server/middleware"
	"spark_server/models"
	"spark_server/services"
)

// SyncController handles the incremental sync pull endpoint
type SyncController struct {
	SyncService *services.SyncService
}

// NewSyncController initializes the sync controller
func NewSyncController(service *services.SyncService) *SyncController {
	return &SyncController{SyncService: service}
}

// HandleSyncPull runs one sync pull and returns the combined change-set
// plus the client's next cursor.
func (c *SyncController) HandleSyncPull(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	var request models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	response, err := c.SyncService.Pull(r.Context(), userID, request)
	if err != nil {
		log.Printf("❌ Sync pull failed for %s: %v", userID, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "internal_server_error",
			"details": err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
