package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"spark_server/middleware"
	"spark_server/services"
)

// ChatController handles the chat write endpoints
type ChatController struct {
	ChatService *services.ChatService
}

// NewChatController initializes the chat controller
func NewChatController(service *services.ChatService) *ChatController {
	return &ChatController{ChatService: service}
}

// HandleSendMessage - stores an encrypted message for a match
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var request struct {
		MatchID string `json:"match_id"`
		ChatID  string `json:"chat_id"` // optional; skips the match lookup when set
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if request.MatchID == "" || request.Content == "" {
		http.Error(w, `{"error": "Missing required fields: match_id or content"}`, http.StatusBadRequest)
		return
	}

	message, err := c.ChatService.SendMessage(r.Context(), userID, request.MatchID, request.ChatID, request.Content)
	if err != nil {
		if errors.Is(err, services.ErrNotParticipant) || errors.Is(err, services.ErrMatchInactive) {
			http.Error(w, `{"error": "Forbidden"}`, http.StatusForbidden)
			return
		}
		log.Printf("❌ Failed to send message: %v", err)
		http.Error(w, `{"error": "Failed to send message"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "success",
		"chat_id":    message.ChatID,
		"message_id": message.MessageID,
	})
}

// HandleMarkMessagesAsRead - marks the counterpart's messages as read
func (c *ChatController) HandleMarkMessagesAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var request struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.ChatID == "" {
		http.Error(w, `{"error": "chat_id is required"}`, http.StatusBadRequest)
		return
	}

	marked, err := c.ChatService.MarkMessagesAsRead(r.Context(), userID, request.ChatID)
	if err != nil {
		if errors.Is(err, services.ErrNotParticipant) {
			http.Error(w, `{"error": "Forbidden"}`, http.StatusForbidden)
			return
		}
		log.Printf("❌ Failed to mark messages as read: %v", err)
		http.Error(w, `{"error": "Failed to mark messages as read"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"marked": marked,
	})
}
