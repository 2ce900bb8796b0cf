package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"spark_server/middleware"
	"spark_server/services"
)

// MatchController handles the match lifecycle endpoints
type MatchController struct {
	MatchService *services.MatchService
}

// NewMatchController creates a new MatchController instance
func NewMatchController(service *services.MatchService) *MatchController {
	return &MatchController{MatchService: service}
}

// HandleCreateMatch - stores a new active match
func (c *MatchController) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var request struct {
		TargetUserID string `json:"target_user_id"`
		PlaceID      string `json:"place_id"`
		PlaceName    string `json:"place_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.TargetUserID == "" {
		http.Error(w, `{"error": "target_user_id is required"}`, http.StatusBadRequest)
		return
	}

	match, err := c.MatchService.CreateMatch(r.Context(), userID, request.TargetUserID, request.PlaceID, request.PlaceName)
	if err != nil {
		log.Printf("❌ Failed to create match: %v", err)
		http.Error(w, `{"error": "Failed to create match"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "success",
		"match_id": match.MatchID,
	})
}

// HandleOpenMatch - stamps the caller's opened-at timestamp
func (c *MatchController) HandleOpenMatch(w http.ResponseWriter, r *http.Request) {
	c.handleMatchAction(w, r, c.MatchService.MarkOpened, "Failed to open match")
}

// HandleUnmatch - flips the match to unmatched
func (c *MatchController) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	c.handleMatchAction(w, r, c.MatchService.Unmatch, "Failed to unmatch")
}

func (c *MatchController) handleMatchAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, userID, matchID string) error,
	failureMessage string,
) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var request struct {
		MatchID string `json:"match_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.MatchID == "" {
		http.Error(w, `{"error": "match_id is required"}`, http.StatusBadRequest)
		return
	}

	if err := action(r.Context(), userID, request.MatchID); err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			http.Error(w, `{"error": "Forbidden"}`, http.StatusForbidden)
			return
		}
		log.Printf("❌ %s %s: %v", failureMessage, request.MatchID, err)
		http.Error(w, `{"error": "`+failureMessage+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}
