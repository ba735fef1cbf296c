package payments

import (
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/subscription"
)

// SubscriptionResult carries what the request path needs back to the caller:
// the provider ids to persist and the client secret to finish confirmation.
type SubscriptionResult struct {
	SubscriptionID string
	ClientSecret   string
	PeriodEnd      time.Time
}

type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
}

// Provider is the synchronous Stripe surface used by the orchestrator.
type Provider interface {
	CreateCustomer(email, name string, userID uint) (string, error)
	CreateSubscription(customerID string, userID uint) (*SubscriptionResult, error)
	CreatePaymentIntent(customerID string, amount int64, userID uint, gameID string) (*PaymentIntentResult, error)
	CancelAtPeriodEnd(subscriptionID string) error
}

type StripeProvider struct {
	priceID   string
	trialDays int64
}

func NewStripeProvider(secretKey, priceID string, trialDays int64) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{priceID: priceID, trialDays: trialDays}
}

func (p *StripeProvider) CreateCustomer(email, name string, userID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))

	stripeCustomer, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return stripeCustomer.ID, nil
}

func (p *StripeProvider) CreateSubscription(customerID string, userID uint) (*SubscriptionResult, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				Price: stripe.String(p.priceID),
			},
		},
		TrialPeriodDays: stripe.Int64(p.trialDays),
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))
	params.AddExpand("latest_invoice.payment_intent")
	params.AddExpand("pending_setup_intent")

	sub, err := subscription.New(params)
	if err != nil {
		return nil, err
	}

	return &SubscriptionResult{
		SubscriptionID: sub.ID,
		ClientSecret:   clientSecretOf(sub),
		PeriodEnd:      time.Unix(sub.CurrentPeriodEnd, 0),
	}, nil
}

// clientSecretOf prefers the pending setup intent, which is what a trialing
// subscription with nothing due carries; paid-immediately subscriptions
// carry it on the first invoice's payment intent instead.
func clientSecretOf(sub *stripe.Subscription) string {
	if sub.PendingSetupIntent != nil && sub.PendingSetupIntent.ClientSecret != "" {
		return sub.PendingSetupIntent.ClientSecret
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		return sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return ""
}

func (p *StripeProvider) CreatePaymentIntent(customerID string, amount int64, userID uint, gameID string) (*PaymentIntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Customer: stripe.String(customerID),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))
	params.AddMetadata("game_id", gameID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("payment intent %s has no client secret", intent.ID)
	}

	return &PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (p *StripeProvider) CancelAtPeriodEnd(subscriptionID string) error {
	_, err := subscription.Update(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	return err
}
