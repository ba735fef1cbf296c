package model

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex;not null"`
	Password    string `json:"-"` // empty for OAuth-only accounts
	Username    string `gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name"`

	// OAuth identity, set when the account was created via a provider login
	OAuthProvider string `json:"oauth_provider"`
	OAuthSubject  string `json:"oauth_subject" gorm:"index"`

	// StripeCustomerID is the only key used to resolve inbound Stripe
	// events back to a user. Events without a resolvable user are dropped.
	StripeCustomerID   *string `json:"stripe_customer_id" gorm:"uniqueIndex"`
	SubscriptionStatus string  `json:"subscription_status" gorm:"default:'none'"`

	// İlişkiler
	Subscriptions []UserSubscription `json:"-"`
	Purchases     []Purchase         `json:"-"`
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":                  u.ID,
		"username":            u.Username,
		"display_name":        u.DisplayName,
		"email":               u.Email,
		"subscription_status": u.SubscriptionStatus,
	}
}
