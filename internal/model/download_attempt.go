package model

import "time"

const (
	DownloadInProgress = "in_progress"
	DownloadCompleted  = "completed"
)

type DownloadAttempt struct {
	ID        uint      `gorm:"primaryKey"`
	PublicID  string    `gorm:"size:36;uniqueIndex"`
	UserID    uint      `gorm:"not null;index"`
	Platform  string    `gorm:"size:20"` // windows, mac, linux
	Version   string    `gorm:"size:20"` // latest, beta
	Status    string    `gorm:"size:20;index"`
	IP        string    `gorm:"size:50"`
	UserAgent string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
