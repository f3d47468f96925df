package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/handler"
)

// NotificationHandler exposes the admin notification endpoints.
type NotificationHandler struct {
	notifications domain.NotificationService
	logger        *slog.Logger
}

// NewNotificationHandler creates an admin notification handler.
func NewNotificationHandler(notifications domain.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger.With("component", "admin_notifications"),
	}
}

type notificationJSON struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   uuid.UUID `json:"order_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// List handles GET /admin/api/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	notifications, err := h.notifications.ListNotifications(r.Context(), limit, offset)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]notificationJSON, len(notifications))
	for i, n := range notifications {
		out[i] = notificationJSON{
			ID:        n.ID,
			Type:      string(n.Type),
			Priority:  string(n.Priority),
			Title:     n.Title,
			Message:   n.Message,
			OrderID:   n.OrderID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Notifications []notificationJSON `json:"notifications"`
	}{Notifications: out})
}

// MarkRead handles POST /admin/api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.notifications.MarkNotificationRead(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
