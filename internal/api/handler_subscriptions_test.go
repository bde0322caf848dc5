package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"water-vending-backend/internal/model"
)

func TestPutSubscriptionRequiresBody(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPut, "/api/subscriptions", "", mintToken(t, "user-1")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	router, db := setupTestRouter(t)
	token := mintToken(t, "user-1")

	body := `{"endpoint":"https://push.example.com/a","p256dh":"key","auth":"secret"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPut, "/api/subscriptions", body, token))
	require.Equal(t, http.StatusCreated, w.Code)

	// Re-registering the same endpoint replaces, not duplicates.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodPut, "/api/subscriptions", body, token))
	require.Equal(t, http.StatusCreated, w.Code)

	var count int64
	db.Model(&model.PushSubscription{}).Count(&count)
	assert.Equal(t, int64(1), count)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodGet, "/api/subscriptions", "", token))
	require.Equal(t, http.StatusOK, w.Code)

	var listed map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, []string{"https://push.example.com/a"}, listed["endpoints"])

	// Another user cannot delete it.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodDelete, "/api/subscriptions",
		`{"endpoint":"https://push.example.com/a"}`, mintToken(t, "user-2")))
	require.Equal(t, http.StatusNoContent, w.Code)
	db.Model(&model.PushSubscription{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// The owner can.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodDelete, "/api/subscriptions",
		`{"endpoint":"https://push.example.com/a"}`, token))
	require.Equal(t, http.StatusNoContent, w.Code)
	db.Model(&model.PushSubscription{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
