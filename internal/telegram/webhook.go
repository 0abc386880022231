package telegram

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/voxnote/voxnote/internal/observe"
)

// WebhookHandler returns an http.Handler that accepts Bot API webhook
// deliveries and dispatches them to the bot. Telegram expects a 2xx quickly;
// processing happens in the background against the server's base context so
// an in-flight transcription survives the webhook request ending.
func WebhookHandler(bot *Bot) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var u Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			observe.Logger(r.Context()).Warn("telegram: invalid webhook payload", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if u.Message != nil {
			// Detach from the request context so cancellation on response
			// write does not abort the transcription.
			go bot.HandleMessage(context.WithoutCancel(r.Context()), u.Message)
		}
		w.WriteHeader(http.StatusOK)
	})
}
