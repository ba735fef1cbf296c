package model

import "gorm.io/gorm"

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
	PurchaseExpired   = "expired"
)

// Purchase is a one-time game pack purchase, keyed by the Stripe payment
// intent so webhook deliveries can finalize it asynchronously.
type Purchase struct {
	gorm.Model
	UserID                uint   `json:"user_id" gorm:"index"`
	GameID                string `json:"game_id" gorm:"size:100;not null"`
	StripePaymentIntentID string `json:"stripe_payment_intent_id" gorm:"uniqueIndex"`
	Status                string `json:"status" gorm:"size:20;default:'pending'"`
	Amount                int64  `json:"amount"` // minor currency units

	// İlişkiler
	User User `json:"-" gorm:"foreignKey:UserID"`
}
