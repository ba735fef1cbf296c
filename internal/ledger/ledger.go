package ledger

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"questlog_backend/internal/model"
)

// Store is the durable record of users, subscriptions, purchases and
// download attempts. All writes are single-row overwrites keyed by a stable
// id, so webhook redelivery and arbitrary delivery order are safe: applying
// the same write twice leaves the same state.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(user *model.User) error {
	return s.db.Create(user).Error
}

func (s *Store) UserByID(id uint) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByEmail(email string) (*model.User, error) {
	var user model.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UserByUsername(username string) (*model.User, error) {
	var user model.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertStripeCustomerID stores the provider customer id on the user row.
// Idempotent: re-applying the same id is a no-op overwrite.
func (s *Store) UpsertStripeCustomerID(userID uint, customerID string) error {
	return s.db.Model(&model.User{}).Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}

// ClearStripeCustomerID removes a customer id after provider-side deletion.
// Unknown ids are a no-op.
func (s *Store) ClearStripeCustomerID(customerID string) error {
	return s.db.Model(&model.User{}).Where("stripe_customer_id = ?", customerID).
		Update("stripe_customer_id", nil).Error
}

// SetSubscriptionStatus is a pure overwrite of the user's status.
func (s *Store) SetSubscriptionStatus(userID uint, status string) error {
	return s.db.Model(&model.User{}).Where("id = ?", userID).
		Update("subscription_status", status).Error
}

// RecordSubscription creates or overwrites the local mirror of a provider
// subscription, keyed by the provider subscription id.
func (s *Store) RecordSubscription(userID uint, stripeSubID, status string, periodEnd time.Time) error {
	sub := model.UserSubscription{
		UserID:           userID,
		StripeSubID:      stripeSubID,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_sub_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "status", "current_period_end", "updated_at"}),
	}).Create(&sub).Error
}

// UpdateSubscriptionStatus overwrites the mirrored status. A subscription id
// this instance never recorded (e.g. created in the provider dashboard) is a
// no-op, not an error.
func (s *Store) UpdateSubscriptionStatus(stripeSubID, status string) error {
	return s.db.Model(&model.UserSubscription{}).
		Where("stripe_sub_id = ?", stripeSubID).
		Update("status", status).Error
}

func (s *Store) UpdateSubscriptionPeriodEnd(stripeSubID string, periodEnd time.Time) error {
	return s.db.Model(&model.UserSubscription{}).
		Where("stripe_sub_id = ?", stripeSubID).
		Update("current_period_end", periodEnd).Error
}

// SubscriptionByStripeID returns (nil, nil) when the id is unknown.
func (s *Store) SubscriptionByStripeID(stripeSubID string) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.db.Where("stripe_sub_id = ?", stripeSubID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) LatestSubscriptionForUser(userID uint) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// RecordPurchase creates or overwrites a purchase keyed by the payment
// intent id. checkout.session.completed can arrive before or after the
// synchronous pending row was written; either order converges.
func (s *Store) RecordPurchase(purchase *model.Purchase) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_payment_intent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "game_id", "status", "amount", "updated_at"}),
	}).Create(purchase).Error
}

// UpdatePurchaseStatusByPaymentIntent overwrites the purchase status.
// Unknown intent ids are a no-op.
func (s *Store) UpdatePurchaseStatusByPaymentIntent(intentID, status string) error {
	return s.db.Model(&model.Purchase{}).
		Where("stripe_payment_intent_id = ?", intentID).
		Update("status", status).Error
}

func (s *Store) PurchaseByPaymentIntent(intentID string) (*model.Purchase, error) {
	var purchase model.Purchase
	err := s.db.Where("stripe_payment_intent_id = ?", intentID).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) PurchasesForUser(userID uint) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}

// RecordWebhookEvent appends an audit row per received event. Redelivered
// events hit the unique index and are silently skipped.
func (s *Store) RecordWebhookEvent(eventID, eventType string, payload []byte) error {
	event := model.WebhookEvent{
		StripeEventID: eventID,
		EventType:     eventType,
		Payload:       datatypes.JSON(payload),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(&event).Error
}
