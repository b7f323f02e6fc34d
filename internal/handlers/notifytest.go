package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/exiscale/urlhealth/internal/notify"
)

// NotifyTestHandler serves the transport-test endpoints so operators can
// verify email/Telegram credentials without waiting for a real detection.
type NotifyTestHandler struct {
	Email notify.EmailSender
	Chat  notify.ChatSender
}

// TestEmail sends a canned alert to one address. Body: {"email": "..."}.
func (h *NotifyTestHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Email == "" {
		JSONError(w, "invalid JSON or missing email", http.StatusBadRequest)
		return
	}
	if h.Email == nil {
		JSONError(w, "email transport not configured", http.StatusConflict)
		return
	}

	err := h.Email.Send(r.Context(), input.Email,
		"Test Alert: URL Health Monitor",
		"This is a test alert from URL Health Monitor.",
		"<p>This is a test alert from <strong>URL Health Monitor</strong>.</p>")
	writeJSON(w, map[string]any{
		"success": err == nil,
		"message": resultMessage(err, "Test email sent to "+input.Email),
	})
}

// TestTelegram sends a canned alert to one chat. Body: {"chat_id": "..."}.
func (h *NotifyTestHandler) TestTelegram(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.ChatID == "" {
		JSONError(w, "invalid JSON or missing chat_id", http.StatusBadRequest)
		return
	}
	if h.Chat == nil {
		JSONError(w, "telegram transport not configured", http.StatusConflict)
		return
	}

	err := h.Chat.Send(r.Context(), input.ChatID,
		"Test Alert\n\nThis is a test from URL Health Monitor.")
	writeJSON(w, map[string]any{
		"success": err == nil,
		"message": resultMessage(err, "Test message sent to "+input.ChatID),
	})
}

func resultMessage(err error, ok string) string {
	if err != nil {
		return "delivery failed: " + err.Error()
	}
	return ok
}
