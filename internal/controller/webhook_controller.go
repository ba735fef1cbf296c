package controller

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v74/webhook"

	"questlog_backend/internal/ledger"
	"questlog_backend/internal/model"
	"questlog_backend/pkg/entitlement"
)

// WebhookController verifies and routes Stripe events. Dispatch is an
// explicit table built at construction; unknown event types are acknowledged
// with a generic payload so Stripe does not retry them.
//
// Every handler write is a last-value overwrite keyed by a provider id, so
// redelivered or reordered events converge to the same ledger state.
type WebhookController struct {
	store    *ledger.Store
	secret   string
	handlers map[string]webhookHandler
}

type webhookHandler func(data json.RawMessage) error

func NewWebhookController(store *ledger.Store, secret string) *WebhookController {
	w := &WebhookController{
		store:  store,
		secret: secret,
	}

	w.handlers = map[string]webhookHandler{
		"customer.created":              w.customerCreated,
		"customer.updated":              w.informational,
		"customer.deleted":              w.customerDeleted,
		"customer.subscription.created": w.subscriptionCreated,
		"customer.subscription.updated": w.subscriptionUpdated,
		"customer.subscription.deleted": w.subscriptionDeleted,

		"customer.subscription.trial_will_end": w.informational,

		"invoice.paid":              w.invoicePaid,
		"invoice.payment_succeeded": w.invoicePaid,
		"invoice.payment_failed":    w.invoicePaymentFailed,
		"invoice.upcoming":          w.informational,
		"invoice.finalized":         w.informational,

		"payment_intent.created":        w.informational,
		"payment_intent.processing":     w.informational,
		"payment_intent.succeeded":      w.paymentIntentSucceeded,
		"payment_intent.payment_failed": w.paymentIntentFailed,
		"payment_intent.canceled":       w.paymentIntentFailed,

		"checkout.session.completed": w.checkoutSessionCompleted,
		"checkout.session.expired":   w.checkoutSessionExpired,

		"charge.succeeded": w.informational,
		"charge.failed":    w.informational,
		"charge.refunded":  w.informational,

		"payment_method.attached": w.informational,
		"payment_method.detached": w.informational,

		"account.updated": w.informational,
		"product.created": w.informational,
		"product.updated": w.informational,
		"product.deleted": w.informational,
		"price.created":   w.informational,
		"price.updated":   w.informational,
		"price.deleted":   w.informational,
	}

	return w
}

func (w *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	if w.secret == "" {
		return respondError(c, fiber.StatusBadRequest, "Webhook secret is not configured")
	}

	// Raw body bytes, exactly as received: the signature is computed over
	// them and any re-serialization would break verification.
	payload := c.Body()
	if len(payload) == 0 {
		return respondError(c, fiber.StatusBadRequest, "Empty webhook payload")
	}

	signatureHeader := c.Get("Stripe-Signature")
	if signatureHeader == "" {
		return respondError(c, fiber.StatusBadRequest, "Missing Stripe signature")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid webhook signature")
	}

	log.Printf("Processing Stripe webhook event: %s (%s)", event.Type, event.ID)

	// Audit row; duplicates dedupe on the event id. Best-effort.
	if err := w.store.RecordWebhookEvent(event.ID, string(event.Type), event.Data.Raw); err != nil {
		log.Printf("Could not record webhook event %s: %v", event.ID, err)
	}

	handler, ok := w.handlers[string(event.Type)]
	if !ok {
		log.Printf("Unhandled Stripe event type: %s", event.Type)
		return respondOK(c, fiber.Map{"status": "unhandled_event_type"})
	}

	if err := handler(event.Data.Raw); err != nil {
		log.Printf("Webhook handler for %s failed: %v", event.Type, err)
		return respondError(c, fiber.StatusInternalServerError, "Webhook processing failed")
	}

	return respondOK(c, fiber.Map{"status": "success"})
}

// informational events are acknowledged without touching the ledger.
func (w *WebhookController) informational(json.RawMessage) error {
	return nil
}

// userIDFromMetadata pulls our user id out of provider object metadata.
// Objects created outside this system (e.g. in the Stripe dashboard) carry
// no user_id; those events are skipped, never guessed.
func userIDFromMetadata(metadata map[string]string) (uint, bool) {
	raw, ok := metadata["user_id"]
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (w *WebhookController) customerCreated(data json.RawMessage) error {
	var customer struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &customer); err != nil {
		return err
	}

	userID, ok := userIDFromMetadata(customer.Metadata)
	if !ok {
		log.Printf("customer.created %s has no user_id metadata, skipping", customer.ID)
		return nil
	}
	return w.store.UpsertStripeCustomerID(userID, customer.ID)
}

func (w *WebhookController) customerDeleted(data json.RawMessage) error {
	var customer struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &customer); err != nil {
		return err
	}
	return w.store.ClearStripeCustomerID(customer.ID)
}

func (w *WebhookController) subscriptionCreated(data json.RawMessage) error {
	var sub struct {
		ID               string            `json:"id"`
		Status           string            `json:"status"`
		CurrentPeriodEnd int64             `json:"current_period_end"`
		Metadata         map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return err
	}

	userID, ok := userIDFromMetadata(sub.Metadata)
	if !ok {
		log.Printf("subscription %s has no user_id metadata, skipping", sub.ID)
		return nil
	}
	return w.store.RecordSubscription(userID, sub.ID, sub.Status, time.Unix(sub.CurrentPeriodEnd, 0))
}

func (w *WebhookController) subscriptionUpdated(data json.RawMessage) error {
	var sub struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		CurrentPeriodEnd int64  `json:"current_period_end"`
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return err
	}

	// Status is copied from the provider verbatim; unknown ids no-op.
	if err := w.store.UpdateSubscriptionStatus(sub.ID, sub.Status); err != nil {
		return err
	}
	return w.store.UpdateSubscriptionPeriodEnd(sub.ID, time.Unix(sub.CurrentPeriodEnd, 0))
}

func (w *WebhookController) subscriptionDeleted(data json.RawMessage) error {
	var sub struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return err
	}

	local, err := w.store.SubscriptionByStripeID(sub.ID)
	if err != nil {
		return err
	}
	if local == nil {
		log.Printf("subscription.deleted for unknown subscription %s, skipping", sub.ID)
		return nil
	}

	if err := w.store.UpdateSubscriptionStatus(sub.ID, string(entitlement.StatusCancelled)); err != nil {
		return err
	}
	return w.store.SetSubscriptionStatus(local.UserID, string(entitlement.StatusCancelled))
}

func (w *WebhookController) invoicePaid(data json.RawMessage) error {
	var invoice struct {
		ID           string `json:"id"`
		Subscription string `json:"subscription"`
	}
	if err := json.Unmarshal(data, &invoice); err != nil {
		return err
	}
	if invoice.Subscription == "" {
		// One-off invoices carry no subscription; nothing to update.
		return nil
	}

	if err := w.store.UpdateSubscriptionStatus(invoice.Subscription, string(entitlement.StatusActive)); err != nil {
		return err
	}

	local, err := w.store.SubscriptionByStripeID(invoice.Subscription)
	if err != nil {
		return err
	}
	if local == nil {
		log.Printf("invoice %s paid for unknown subscription %s, skipping", invoice.ID, invoice.Subscription)
		return nil
	}
	return w.store.SetSubscriptionStatus(local.UserID, string(entitlement.StatusActive))
}

func (w *WebhookController) invoicePaymentFailed(data json.RawMessage) error {
	var invoice struct {
		ID           string `json:"id"`
		Subscription string `json:"subscription"`
	}
	if err := json.Unmarshal(data, &invoice); err != nil {
		return err
	}
	if invoice.Subscription == "" {
		return nil
	}

	local, err := w.store.SubscriptionByStripeID(invoice.Subscription)
	if err != nil {
		return err
	}
	if local == nil {
		log.Printf("invoice %s failed for unknown subscription %s, skipping", invoice.ID, invoice.Subscription)
		return nil
	}
	return w.store.SetSubscriptionStatus(local.UserID, string(entitlement.StatusPaymentFailed))
}

func (w *WebhookController) paymentIntentSucceeded(data json.RawMessage) error {
	var intent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &intent); err != nil {
		return err
	}
	return w.store.UpdatePurchaseStatusByPaymentIntent(intent.ID, model.PurchaseCompleted)
}

func (w *WebhookController) paymentIntentFailed(data json.RawMessage) error {
	var intent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &intent); err != nil {
		return err
	}
	return w.store.UpdatePurchaseStatusByPaymentIntent(intent.ID, model.PurchaseFailed)
}

func (w *WebhookController) checkoutSessionCompleted(data json.RawMessage) error {
	var session struct {
		ID            string            `json:"id"`
		PaymentIntent string            `json:"payment_intent"`
		AmountTotal   int64             `json:"amount_total"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}
	if session.PaymentIntent == "" {
		return nil
	}

	userID, ok := userIDFromMetadata(session.Metadata)
	if !ok {
		log.Printf("checkout session %s has no user_id metadata, skipping", session.ID)
		return nil
	}

	return w.store.RecordPurchase(&model.Purchase{
		UserID:                userID,
		GameID:                session.Metadata["game_id"],
		StripePaymentIntentID: session.PaymentIntent,
		Status:                model.PurchaseCompleted,
		Amount:                session.AmountTotal,
	})
}

func (w *WebhookController) checkoutSessionExpired(data json.RawMessage) error {
	var session struct {
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}
	if session.PaymentIntent == "" {
		return nil
	}
	return w.store.UpdatePurchaseStatusByPaymentIntent(session.PaymentIntent, model.PurchaseExpired)
}
