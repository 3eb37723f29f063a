package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/authz"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/notification"
	"github.com/stanstork/adscope-api/internal/repository"
)

// NotificationHandler serves the run alerts persisted for an account.
type NotificationHandler struct {
	service notification.Service
	logger  zerolog.Logger
}

type notificationList struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func NewNotificationHandler(service notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	notifications, err := h.service.ListRecent(r.Context(), accountID, queryLimit(r, 25, 100))
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("failed to list notifications")
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}

	resp := notificationList{Notifications: notifications}
	if resp.Notifications == nil {
		resp.Notifications = []models.Notification{}
	}
	for _, n := range notifications {
		if n.ReadAt == nil {
			resp.Unread++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccount(w, r)
	if !ok {
		return
	}

	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	notif, err := h.service.MarkRead(r.Context(), accountID, notifID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Notification not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to mark notification as read")
		http.Error(w, "Failed to update notification", http.StatusInternalServerError)
	default:
		readBy, _ := authz.UserIDFromRequest(r)
		h.logger.Info().
			Str("account_id", accountID).
			Str("notification_id", notifID).
			Str("read_by", readBy).
			Msg("notification marked read")
		writeJSON(w, http.StatusOK, notif)
	}
}
