package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/adscope-api/internal/authz"
	"github.com/stanstork/adscope-api/internal/models"
	"github.com/stanstork/adscope-api/internal/notification"
	"github.com/stanstork/adscope-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifications struct {
	notification.Service
	items map[string][]models.Notification
	limit int
}

func (f *fakeNotifications) ListRecent(_ context.Context, accountID string, limit int) ([]models.Notification, error) {
	f.limit = limit
	return f.items[accountID], nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, accountID, id string) (models.Notification, error) {
	for _, n := range f.items[accountID] {
		if n.ID == id {
			now := time.Now()
			n.ReadAt = &now
			return n, nil
		}
	}
	return models.Notification{}, repository.ErrNotFound
}

func notificationRouter(svc notification.Service) *mux.Router {
	return notificationRouterWithLogger(svc, zerolog.Nop())
}

func notificationRouterWithLogger(svc notification.Service, logger zerolog.Logger) *mux.Router {
	auth := NewAuthHandler(jwtSecret, zerolog.Nop())
	h := NewNotificationHandler(svc, logger)
	router := mux.NewRouter()
	router.Use(auth.JWTMiddleware)
	router.HandleFunc("/api/notifications", h.List).Methods(http.MethodGet)
	router.HandleFunc("/api/notifications/{notificationID}/read", h.MarkRead).Methods(http.MethodPost)
	return router
}

func authedRequest(t *testing.T, router http.Handler, method, path, accountID string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := authz.IssueToken(jwtSecret, accountID, "user-1", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListNotificationsCountsUnread(t *testing.T) {
	read := time.Now()
	svc := &fakeNotifications{items: map[string][]models.Notification{
		"acc-1": {{ID: "n-1"}, {ID: "n-2", ReadAt: &read}, {ID: "n-3"}},
	}}
	router := notificationRouter(svc)

	rec := authedRequest(t, router, http.MethodGet, "/api/notifications?limit=500", "acc-1")

	require.Equal(t, http.StatusOK, rec.Code)
	var body notificationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Notifications, 3)
	assert.Equal(t, 2, body.Unread)
	assert.Equal(t, 25, svc.limit)
}

func TestListNotificationsEmptyIsArray(t *testing.T) {
	router := notificationRouter(&fakeNotifications{})

	rec := authedRequest(t, router, http.MethodGet, "/api/notifications", "acc-2")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[],"unread":0}`, rec.Body.String())
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &fakeNotifications{items: map[string][]models.Notification{"acc-1": {{ID: "n-1"}}}}
	router := notificationRouter(svc)

	rec := authedRequest(t, router, http.MethodPost, "/api/notifications/n-1/read", "acc-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var notif models.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notif))
	assert.NotNil(t, notif.ReadAt)

	rec = authedRequest(t, router, http.MethodPost, "/api/notifications/n-1/read", "acc-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadRecordsReader(t *testing.T) {
	var buf bytes.Buffer
	svc := &fakeNotifications{items: map[string][]models.Notification{"acc-1": {{ID: "n-1"}}}}
	router := notificationRouterWithLogger(svc, zerolog.New(&buf))

	rec := authedRequest(t, router, http.MethodPost, "/api/notifications/n-1/read", "acc-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification marked read", entry["message"])
	assert.Equal(t, "user-1", entry["read_by"])
	assert.Equal(t, "n-1", entry["notification_id"])
}
