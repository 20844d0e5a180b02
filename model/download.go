package model

import "time"

// Download statuses stored in the history table.
const (
	DownloadStatusRunning   = "running"
	DownloadStatusCompleted = "completed"
	DownloadStatusFailed    = "failed"
	DownloadStatusCancelled = "cancelled"
)

// DownloadRecord is one row of download history.
type DownloadRecord struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	URL        string    `gorm:"size:512;index" json:"url"`
	Title      string    `gorm:"size:512" json:"title"`
	Codec      string    `gorm:"size:16" json:"codec"`
	OutputPath string    `gorm:"size:1024" json:"outputPath"`
	Status     string    `gorm:"size:16;index" json:"status"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName pins the table name regardless of gorm naming strategy.
func (DownloadRecord) TableName() string {
	return "downloads"
}

// IsFinished reports whether the download reached a terminal status.
func (r *DownloadRecord) IsFinished() bool {
	switch r.Status {
	case DownloadStatusCompleted, DownloadStatusFailed, DownloadStatusCancelled:
		return true
	}
	return false
}
