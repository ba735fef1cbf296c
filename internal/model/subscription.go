package model

import (
	"time"

	"gorm.io/gorm"
)

// UserSubscription mirrors a Stripe subscription object. Status is always a
// direct copy of the last-seen provider status, never computed locally.
type UserSubscription struct {
	gorm.Model
	UserID           uint      `json:"user_id" gorm:"index"`
	StripeSubID      string    `json:"stripe_subscription_id" gorm:"uniqueIndex"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`

	// İlişkiler
	User User `json:"-" gorm:"foreignKey:UserID"`
}
