package ledger

import (
	"time"

	"questlog_backend/internal/model"
)

// Download-attempt queries back the rate limiter. Counts are always scoped
// to a sliding window; nothing here aggregates beyond the window.

func (s *Store) CountDownloadsSince(since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.DownloadAttempt{}).
		Where("created_at > ?", since).
		Count(&count).Error
	return count, err
}

func (s *Store) CountUserDownloadsSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.DownloadAttempt{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	return count, err
}

func (s *Store) CountUserInProgressSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.DownloadAttempt{}).
		Where("user_id = ? AND status = ? AND created_at > ?", userID, model.DownloadInProgress, since).
		Count(&count).Error
	return count, err
}

func (s *Store) RecordDownloadAttempt(attempt *model.DownloadAttempt) error {
	return s.db.Create(attempt).Error
}

// CompleteDownloadAttempt is best-effort bookkeeping; unknown ids no-op.
func (s *Store) CompleteDownloadAttempt(publicID string) error {
	return s.db.Model(&model.DownloadAttempt{}).
		Where("public_id = ?", publicID).
		Update("status", model.DownloadCompleted).Error
}

// PurgeDownloadAttemptsBefore removes aged ledger rows. Attempts are only
// ever read within one-hour windows, so anything older is dead weight.
func (s *Store) PurgeDownloadAttemptsBefore(cutoff time.Time) (int64, error) {
	result := s.db.
		Where("created_at < ?", cutoff).
		Delete(&model.DownloadAttempt{})
	return result.RowsAffected, result.Error
}
