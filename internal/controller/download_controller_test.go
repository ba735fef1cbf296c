package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"questlog_backend/internal/ledger"
	"questlog_backend/internal/middleware"
	"questlog_backend/internal/model"
	"questlog_backend/internal/ratelimit"
)

type fakeStorage struct {
	missing map[string]bool
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	return !f.missing[key], nil
}

func (f *fakeStorage) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://releases.example.com/" + key + "?signed=1", nil
}

func newDownloadApp(store *ledger.Store) (*fiber.App, *DownloadController) {
	ctrl := NewDownloadController(store, ratelimit.New(store), &fakeStorage{}, "csrf-test-secret")
	app := fiber.New()
	app.Get("/download/token", middleware.AuthMiddleware(), ctrl.GetCSRFToken)
	app.Get("/download/:version", ctrl.Download)
	return app, ctrl
}

func downloadRequest(target, authorization string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func seedAttempts(t *testing.T, store *ledger.Store, userID uint, n int, status string) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.RecordDownloadAttempt(&model.DownloadAttempt{
			PublicID: fmt.Sprintf("seed-%d-%d-%s", userID, i, status),
			UserID:   userID,
			Platform: "windows",
			Version:  "latest",
			Status:   status,
		}))
	}
}

func TestDownloadRequiresAuth(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)

	resp := performRequest(t, app, downloadRequest("/download/latest?platform=windows", ""))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = performRequest(t, app, downloadRequest("/download/latest?platform=windows", "Bearer not-a-token"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDownloadRequiresEntitlement(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)

	for _, status := range []string{"none", "cancelled", "payment_failed", "expired", "trialing"} {
		user := createTestUser(t, store, status+"@example.com", status)
		resp := performRequest(t, app, downloadRequest("/download/latest?platform=windows", bearerToken(t, user)))
		require.Equal(t, http.StatusForbidden, resp.StatusCode, "status %s should be rejected", status)
	}

	for _, status := range []string{"trial", "active", "admin"} {
		user := createTestUser(t, store, status+"@example.com", status)
		resp := performRequest(t, app, downloadRequest("/download/latest?platform=windows", bearerToken(t, user)))
		require.Equal(t, http.StatusFound, resp.StatusCode, "status %s should be allowed", status)
	}
}

func TestDownloadValidatesPlatformAndVersion(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)
	user := createTestUser(t, store, "a@example.com", "active")

	resp := performRequest(t, app, downloadRequest("/download/latest?platform=android", bearerToken(t, user)))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "Unsupported platform", body["error"])

	resp = performRequest(t, app, downloadRequest("/download/stable?platform=windows", bearerToken(t, user)))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decodeBody(t, resp)
	require.Equal(t, "Invalid version", body["error"])
}

func TestDownloadRejectsAutomatedUserAgents(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)
	user := createTestUser(t, store, "a@example.com", "active")

	for _, agent := range []string{"curl/8.4.0", "Wget/1.21", "python-requests/2.31", "Googlebot/2.1"} {
		req := downloadRequest("/download/latest?platform=windows", bearerToken(t, user))
		req.Header.Set("User-Agent", agent)
		resp := performRequest(t, app, req)
		require.Equal(t, http.StatusForbidden, resp.StatusCode, "agent %s should be rejected", agent)
	}
}

func TestDownloadRedirectsAndRecordsAttempt(t *testing.T) {
	store, db := newTestStore(t)
	app, _ := newDownloadApp(store)
	user := createTestUser(t, store, "a@example.com", "active")

	resp := performRequest(t, app, downloadRequest("/download/latest?platform=mac", bearerToken(t, user)))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "https://releases.example.com/releases/mac/questlog.dmg"), location)

	var attempts []model.DownloadAttempt
	require.NoError(t, db.Find(&attempts).Error)
	require.Len(t, attempts, 1)
	require.Equal(t, user.ID, attempts[0].UserID)
	require.Equal(t, "mac", attempts[0].Platform)
	require.Equal(t, model.DownloadInProgress, attempts[0].Status)
}

func TestDownloadMissingObjectIs404(t *testing.T) {
	store, _ := newTestStore(t)
	ctrl := NewDownloadController(store, ratelimit.New(store),
		&fakeStorage{missing: map[string]bool{"releases/linux/questlog-beta.AppImage": true}}, "csrf-test-secret")
	app := fiber.New()
	app.Get("/download/:version", ctrl.Download)
	user := createTestUser(t, store, "a@example.com", "active")

	resp := performRequest(t, app, downloadRequest("/download/beta?platform=linux", bearerToken(t, user)))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadPerUserHourlyLimit(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)
	user := createTestUser(t, store, "a@example.com", "active")

	seedAttempts(t, store, user.ID, ratelimit.PerUserPerHour, model.DownloadCompleted)

	resp := performRequest(t, app, downloadRequest("/download/latest?platform=windows", bearerToken(t, user)))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestDownloadGlobalLimitTripsBeforePerUserChecks(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)
	crowd := createTestUser(t, store, "crowd@example.com", "active")
	fresh := createTestUser(t, store, "fresh@example.com", "active")

	seedAttempts(t, store, crowd.ID, ratelimit.GlobalPerMinute+1, model.DownloadCompleted)

	// a user with zero prior attempts is still rejected on the global window
	resp := performRequest(t, app, downloadRequest("/download/latest?platform=windows", bearerToken(t, fresh)))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Contains(t, body["error"], "try again in a minute")
}

func TestDownloadInProgressLimit(t *testing.T) {
	store, _ := newTestStore(t)
	app, _ := newDownloadApp(store)
	user := createTestUser(t, store, "a@example.com", "active")

	seedAttempts(t, store, user.ID, ratelimit.PerUserInProgress, model.DownloadInProgress)

	resp := performRequest(t, app, downloadRequest("/download/latest?platform=windows", bearerToken(t, user)))
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Contains(t, body["error"], "in progress")
}

func TestDownloadCSRFToken(t *testing.T) {
	store, _ := newTestStore(t)
	app, ctrl := newDownloadApp(store)
	user := createTestUser(t, store, "a@example.com", "active")

	// issued tokens validate
	req := downloadRequest("/download/token", bearerToken(t, user))
	resp := performRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	token := body["data"].(map[string]interface{})["csrf_token"].(string)
	require.True(t, ctrl.validCSRF(token))

	resp = performRequest(t, app, downloadRequest(
		"/download/latest?platform=windows&csrf_token="+token, bearerToken(t, user)))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	// tampered tokens are rejected before anything else runs
	resp = performRequest(t, app, downloadRequest(
		"/download/latest?platform=windows&csrf_token=forged.deadbeef", bearerToken(t, user)))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
