package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// WebhookHandler receives identity-provider sync events
type WebhookHandler struct {
	service threadfeed.Service
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service threadfeed.Service) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Routes returns the routes for identity webhooks
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/identity", h.HandleIdentityEvent)
	return r
}

// HandleIdentityEvent processes one identity-provider delivery. Only
// user-created events mutate state; updated and deleted events are
// acknowledged without action, and unknown kinds are logged and ignored
// so the provider does not retry them forever.
func (h *WebhookHandler) HandleIdentityEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	event, err := threadfeed.ParseIdentityEvent(body)
	if err != nil {
		slog.Error("Malformed identity event", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch event.Kind {
	case threadfeed.IdentityEventUserCreated:
		_, err := h.service.CreateUser(r.Context(), *event.User)
		if err != nil && !errors.Is(err, threadfeed.ErrUserExists) {
			slog.Error("Failed to sync user", "subject", event.User.Subject, "error", err)
			http.Error(w, "Failed to sync user", http.StatusInternalServerError)
			return
		}
	case threadfeed.IdentityEventUserUpdated, threadfeed.IdentityEventUserDeleted:
		// Acknowledged but unhandled upstream.
	default:
		slog.Info("Unhandled identity event", "type", event.RawKind)
	}

	w.WriteHeader(http.StatusOK)
}
