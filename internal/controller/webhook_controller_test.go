package controller

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"questlog_backend/internal/ledger"
	"questlog_backend/internal/model"
)

const testWebhookSecret = "whsec_test_secret"

func newWebhookApp(store *ledger.Store) *fiber.App {
	app := fiber.New()
	app.Post("/webhook", NewWebhookController(store, testWebhookSecret).HandleStripeWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return performRequest(t, app, req)
}

func postSignedEvent(t *testing.T, app *fiber.App, eventID, eventType string, object interface{}) *http.Response {
	t.Helper()
	payload := stripeEvent(eventID, eventType, object)
	return postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	store, db := newTestStore(t)
	app := newWebhookApp(store)

	payload := stripeEvent("evt_1", "customer.created", map[string]interface{}{
		"id":       "cus_1",
		"metadata": map[string]string{"user_id": "1"},
	})

	resp := postWebhook(t, app, payload, signStripePayload(payload, "whsec_wrong_secret"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// zero ledger writes
	var events int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Count(&events).Error)
	require.EqualValues(t, 0, events)
}

func TestWebhookRejectsMissingSignatureAndEmptyBody(t *testing.T) {
	store, _ := newTestStore(t)
	app := newWebhookApp(store)

	payload := stripeEvent("evt_1", "customer.created", map[string]string{"id": "cus_1"})

	resp := postWebhook(t, app, payload, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postWebhook(t, app, nil, signStripePayload(nil, testWebhookSecret))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookRejectsWhenSecretUnconfigured(t *testing.T) {
	store, _ := newTestStore(t)
	app := fiber.New()
	app.Post("/webhook", NewWebhookController(store, "").HandleStripeWebhook)

	payload := stripeEvent("evt_1", "customer.created", map[string]string{"id": "cus_1"})
	resp := postWebhook(t, app, payload, signStripePayload(payload, testWebhookSecret))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookAcknowledgesUnhandledEventTypes(t *testing.T) {
	store, _ := newTestStore(t)
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "plan.created", map[string]string{"id": "plan_1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	require.Equal(t, "unhandled_event_type", data["status"])
}

func TestWebhookCustomerCreatedSetsCustomerID(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "none")
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "customer.created", map[string]interface{}{
		"id":       "cus_9",
		"metadata": map[string]string{"user_id": "1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := store.UserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StripeCustomerID)
	require.Equal(t, "cus_9", *got.StripeCustomerID)
}

func TestWebhookCustomerCreatedWithoutUserIDSkips(t *testing.T) {
	store, db := newTestStore(t)
	createTestUser(t, store, "a@example.com", "none")
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "customer.created", map[string]interface{}{
		"id": "cus_dashboard",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Where("stripe_customer_id IS NOT NULL").Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestWebhookCustomerDeletedClearsCustomerID(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "active")
	require.NoError(t, store.UpsertStripeCustomerID(user.ID, "cus_9"))
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "customer.deleted", map[string]string{"id": "cus_9"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := store.UserByID(user.ID)
	require.NoError(t, err)
	require.Nil(t, got.StripeCustomerID)
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "trialing")
	app := newWebhookApp(store)

	end := time.Now().Add(7 * 24 * time.Hour).Unix()
	resp := postSignedEvent(t, app, "evt_1", "customer.subscription.created", map[string]interface{}{
		"id":                 "sub_1",
		"status":             "trialing",
		"current_period_end": end,
		"metadata":           map[string]string{"user_id": "1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postSignedEvent(t, app, "evt_2", "customer.subscription.updated", map[string]interface{}{
		"id":                 "sub_1",
		"status":             "active",
		"current_period_end": end,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sub, err := store.SubscriptionByStripeID("sub_1")
	require.NoError(t, err)
	require.Equal(t, "active", sub.Status)

	resp = postSignedEvent(t, app, "evt_3", "customer.subscription.deleted", map[string]string{"id": "sub_1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sub, err = store.SubscriptionByStripeID("sub_1")
	require.NoError(t, err)
	require.Equal(t, "cancelled", sub.Status)

	got, err := store.UserByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "cancelled", got.SubscriptionStatus)
}

func TestWebhookInvoicePaidActivatesSubscriptionAndUser(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "trialing")
	require.NoError(t, store.RecordSubscription(user.ID, "sub_1", "trialing", time.Now()))
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "invoice.paid", map[string]string{
		"id":           "in_1",
		"subscription": "sub_1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sub, err := store.SubscriptionByStripeID("sub_1")
	require.NoError(t, err)
	require.Equal(t, "active", sub.Status)

	got, err := store.UserByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "active", got.SubscriptionStatus)
}

func TestWebhookInvoicePaymentFailedUnknownSubscriptionIsGraceful(t *testing.T) {
	store, db := newTestStore(t)
	createTestUser(t, store, "a@example.com", "active")
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "invoice.payment_failed", map[string]string{
		"id":           "in_1",
		"subscription": "sub_never_seen",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, true, body["success"])

	var users []model.User
	require.NoError(t, db.Find(&users).Error)
	require.Equal(t, "active", users[0].SubscriptionStatus)
}

func TestWebhookInvoicePaymentFailedMarksUser(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "active")
	require.NoError(t, store.RecordSubscription(user.ID, "sub_1", "active", time.Now()))
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "invoice.payment_failed", map[string]string{
		"id":           "in_1",
		"subscription": "sub_1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := store.UserByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "payment_failed", got.SubscriptionStatus)
}

func TestWebhookPaymentIntentSucceededIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "active")
	require.NoError(t, store.RecordPurchase(&model.Purchase{
		UserID:                user.ID,
		GameID:                "elden_ring",
		StripePaymentIntentID: "pi_1",
		Status:                model.PurchasePending,
		Amount:                1999,
	}))
	app := newWebhookApp(store)

	for _, eventID := range []string{"evt_1", "evt_1"} {
		resp := postSignedEvent(t, app, eventID, "payment_intent.succeeded", map[string]string{"id": "pi_1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	got, err := store.PurchaseByPaymentIntent("pi_1")
	require.NoError(t, err)
	require.Equal(t, model.PurchaseCompleted, got.Status)
	require.EqualValues(t, 1999, got.Amount)
}

func TestWebhookCheckoutSessionCompletedCreatesPurchase(t *testing.T) {
	store, _ := newTestStore(t)
	createTestUser(t, store, "a@example.com", "active")
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "checkout.session.completed", map[string]interface{}{
		"id":             "cs_1",
		"payment_intent": "pi_77",
		"amount_total":   1499,
		"metadata":       map[string]string{"user_id": "1", "game_id": "witcher3"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := store.PurchaseByPaymentIntent("pi_77")
	require.NoError(t, err)
	require.Equal(t, model.PurchaseCompleted, got.Status)
	require.Equal(t, "witcher3", got.GameID)
	require.EqualValues(t, 1499, got.Amount)
}

func TestWebhookCheckoutSessionExpired(t *testing.T) {
	store, _ := newTestStore(t)
	user := createTestUser(t, store, "a@example.com", "active")
	require.NoError(t, store.RecordPurchase(&model.Purchase{
		UserID:                user.ID,
		GameID:                "skyrim",
		StripePaymentIntentID: "pi_2",
		Status:                model.PurchasePending,
		Amount:                999,
	}))
	app := newWebhookApp(store)

	resp := postSignedEvent(t, app, "evt_1", "checkout.session.expired", map[string]string{
		"id":             "cs_1",
		"payment_intent": "pi_2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := store.PurchaseByPaymentIntent("pi_2")
	require.NoError(t, err)
	require.Equal(t, model.PurchaseExpired, got.Status)
}

func TestWebhookInformationalEventsTouchNothing(t *testing.T) {
	store, db := newTestStore(t)
	createTestUser(t, store, "a@example.com", "active")
	app := newWebhookApp(store)

	for i, eventType := range []string{"product.created", "price.updated", "account.updated", "charge.refunded"} {
		resp := postSignedEvent(t, app, "evt_info_"+string(rune('a'+i)), eventType, map[string]string{"id": "obj_1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		require.Equal(t, "success", data["status"])
	}

	var subs, purchases int64
	require.NoError(t, db.Model(&model.UserSubscription{}).Count(&subs).Error)
	require.NoError(t, db.Model(&model.Purchase{}).Count(&purchases).Error)
	require.EqualValues(t, 0, subs)
	require.EqualValues(t, 0, purchases)
}
