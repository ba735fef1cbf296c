package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"questlog_backend/internal/ledger"
	"questlog_backend/internal/model"
	"questlog_backend/internal/payments"
	"questlog_backend/pkg/catalog"
	"questlog_backend/pkg/entitlement"
	"questlog_backend/pkg/utils/jwt"
)

type PurchaseInput struct {
	GameID string `json:"game_id" validate:"required"`
}

type CancelInput struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
}

type PaymentController struct {
	store          *ledger.Store
	provider       payments.Provider
	publishableKey string
}

func NewPaymentController(store *ledger.Store, provider payments.Provider, publishableKey string) *PaymentController {
	return &PaymentController{
		store:          store,
		provider:       provider,
		publishableKey: publishableKey,
	}
}

// ensureCustomer returns the user's Stripe customer id, creating one
// upstream if needed. The new id is persisted before anything else happens,
// so a failed follow-up call retried later reuses the same customer instead
// of creating a duplicate.
func (p *PaymentController) ensureCustomer(user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := p.provider.CreateCustomer(user.Email, user.DisplayName, user.ID)
	if err != nil {
		return "", err
	}

	if err := p.store.UpsertStripeCustomerID(user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

func (p *PaymentController) CreateSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	user, err := p.store.UserByID(claims.UserID)
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}

	customerID, err := p.ensureCustomer(user)
	if err != nil {
		log.Printf("Could not resolve Stripe customer for user %d: %v", user.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not create Stripe customer")
	}

	result, err := p.provider.CreateSubscription(customerID, user.ID)
	if err != nil {
		log.Printf("Could not create subscription for user %d: %v", user.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not create subscription")
	}

	// Critical write: the caller must not receive a client secret unless the
	// subscription is recorded locally for the webhook to update later.
	if err := p.store.RecordSubscription(user.ID, result.SubscriptionID, string(entitlement.StatusTrialing), result.PeriodEnd); err != nil {
		log.Printf("Could not save subscription %s: %v", result.SubscriptionID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not save subscription")
	}

	if err := p.store.SetSubscriptionStatus(user.ID, string(entitlement.StatusTrialing)); err != nil {
		log.Printf("Could not update user %d status: %v", user.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not update subscription status")
	}

	return respondOK(c, fiber.Map{
		"subscription_id": result.SubscriptionID,
		"client_secret":   result.ClientSecret,
		"status":          entitlement.StatusTrialing,
	})
}

func (p *PaymentController) PurchaseGame(c *fiber.Ctx) error {
	input := new(PurchaseInput)
	if err := c.BodyParser(input); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid input")
	}

	// Unknown games are rejected before any provider call is made.
	game, ok := catalog.Lookup(input.GameID)
	if !ok {
		return respondError(c, fiber.StatusBadRequest, "Unknown game")
	}

	claims := c.Locals("user").(*jwt.Claims)
	user, err := p.store.UserByID(claims.UserID)
	if err != nil {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}

	customerID, err := p.ensureCustomer(user)
	if err != nil {
		log.Printf("Could not resolve Stripe customer for user %d: %v", user.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not create Stripe customer")
	}

	result, err := p.provider.CreatePaymentIntent(customerID, game.Price, user.ID, game.ID)
	if err != nil {
		log.Printf("Could not create payment intent for user %d game %s: %v", user.ID, game.ID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not create payment")
	}

	// The pending row must exist before the client confirms payment, so the
	// payment_intent webhook has something to finalize.
	purchase := &model.Purchase{
		UserID:                user.ID,
		GameID:                game.ID,
		StripePaymentIntentID: result.IntentID,
		Status:                model.PurchasePending,
		Amount:                game.Price,
	}
	if err := p.store.RecordPurchase(purchase); err != nil {
		log.Printf("Could not save purchase for intent %s: %v", result.IntentID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not save purchase")
	}

	return respondOK(c, fiber.Map{
		"client_secret": result.ClientSecret,
	})
}

func (p *PaymentController) CancelSubscription(c *fiber.Ctx) error {
	input := new(CancelInput)
	if err := c.BodyParser(input); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid input")
	}

	claims := c.Locals("user").(*jwt.Claims)

	sub, err := p.store.SubscriptionByStripeID(input.SubscriptionID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not load subscription")
	}
	if sub == nil {
		return respondError(c, fiber.StatusNotFound, "Subscription not found")
	}
	if sub.UserID != claims.UserID {
		return respondError(c, fiber.StatusForbidden, "You don't have permission to cancel this subscription")
	}

	if err := p.provider.CancelAtPeriodEnd(sub.StripeSubID); err != nil {
		log.Printf("Could not cancel Stripe subscription %s: %v", sub.StripeSubID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not cancel subscription")
	}

	if err := p.store.UpdateSubscriptionStatus(sub.StripeSubID, string(entitlement.StatusCancelled)); err != nil {
		log.Printf("Could not update subscription %s status: %v", sub.StripeSubID, err)
		return respondError(c, fiber.StatusInternalServerError, "Could not update subscription status")
	}

	return respondOK(c, fiber.Map{
		"message": "Subscription will be cancelled at the end of the billing period",
	})
}

func (p *PaymentController) GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := p.store.LatestSubscriptionForUser(claims.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not load subscription")
	}

	return respondOK(c, fiber.Map{
		"subscription": sub,
	})
}

func (p *PaymentController) ListPurchases(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	purchases, err := p.store.PurchasesForUser(claims.UserID)
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, "Could not load purchases")
	}

	return respondOK(c, fiber.Map{
		"purchases": purchases,
	})
}

// GetConfig is unauthenticated; the frontend needs the publishable key
// before login.
func (p *PaymentController) GetConfig(c *fiber.Ctx) error {
	return respondOK(c, fiber.Map{
		"publishable_key": p.publishableKey,
	})
}
