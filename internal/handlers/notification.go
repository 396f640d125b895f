package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/types"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	logger        log.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, logger log.Logger) *NotificationHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func NotificationRouter(r chi.Router, h *NotificationHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", h.ListNotifications)
	r.Post("/", h.CreateNotification)
	r.Patch("/", h.MarkNotification)
}

type CreateNotificationRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

type MarkNotificationRequest struct {
	NotificationID string `json:"notificationId"`
	Read           bool   `json:"read"`
}

type NotificationResponse struct {
	Success      bool               `json:"success"`
	Notification types.Notification `json:"notification"`
}

type NotificationListResponse struct {
	Success       bool                 `json:"success"`
	Notifications []types.Notification `json:"notifications"`
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	items, err := h.notifications.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Success: true, Notifications: items})
}

func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req CreateNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	n, err := h.notifications.Create(r.Context(), user.ID, services.NewNotification{
		Title:    req.Title,
		Message:  req.Message,
		Type:     req.Type,
		Priority: req.Priority,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, NotificationResponse{Success: true, Notification: n})
}

// MarkNotification sets the read flag on one of the caller's notifications.
func (h *NotificationHandler) MarkNotification(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req MarkNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if err := h.notifications.SetRead(r.Context(), user.ID, req.NotificationID, req.Read); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
