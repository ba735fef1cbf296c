package ratelimit

import (
	"log"
	"time"

	"questlog_backend/internal/ledger"
)

const (
	GlobalPerMinute   = 60
	PerUserPerHour    = 10
	PerUserInProgress = 2

	globalWindow     = time.Minute
	perUserWindow    = time.Hour
	inProgressWindow = 5 * time.Minute
)

// Result says which limit tripped, if any.
type Result struct {
	Allowed bool
	Reason  string
}

var allowed = Result{Allowed: true}

// Limiter counts recent download attempts against sliding windows. Counts
// are fresh queries per request; no caching, races at the margin accepted.
type Limiter struct {
	store *ledger.Store
	now   func() time.Time
}

func New(store *ledger.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check runs the three window checks in order: global, per-user, per-user
// in-progress. A database failure degrades open so an observability outage
// never blocks legitimate downloads; this is logged loudly instead.
func (l *Limiter) Check(userID uint) Result {
	now := l.now()

	global, err := l.store.CountDownloadsSince(now.Add(-globalWindow))
	if err != nil {
		log.Printf("rate limiter degraded open (global count): %v", err)
		return allowed
	}
	if global >= GlobalPerMinute {
		return Result{Reason: "Download limit reached, please try again in a minute"}
	}

	user, err := l.store.CountUserDownloadsSince(userID, now.Add(-perUserWindow))
	if err != nil {
		log.Printf("rate limiter degraded open (user count): %v", err)
		return allowed
	}
	if user >= PerUserPerHour {
		return Result{Reason: "Too many downloads this hour, please try again later"}
	}

	inProgress, err := l.store.CountUserInProgressSince(userID, now.Add(-inProgressWindow))
	if err != nil {
		log.Printf("rate limiter degraded open (in-progress count): %v", err)
		return allowed
	}
	if inProgress >= PerUserInProgress {
		return Result{Reason: "Too many downloads in progress"}
	}

	return allowed
}
