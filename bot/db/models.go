package db

import (
	"gorm.io/gorm"
)

// ImportRecordModel mirrors the import_records schema. Every library
// mutation the bot triggers lands here, whether it came from a chat
// command or the playback webhook.
type ImportRecordModel struct {
	gorm.Model
	Kind       string `gorm:"not null;index"` // search / auto / url / refresh / webhook
	Provider   string
	SearchTerm string `gorm:"not null;default:''"`
	MediaType  string
	Season     int
	Episode    int
	Status     string `gorm:"not null;index"` // submitted / skipped / failed
	Detail     string
	ChatID     int64 `gorm:"index"`
	UserID     int64 `gorm:"index"`
}

func (ImportRecordModel) TableName() string {
	return "import_records"
}

// WebhookEventModel stores every playback notification we accepted,
// including the ones that were filtered out, for /tasks style audits.
type WebhookEventModel struct {
	gorm.Model
	Event      string `gorm:"not null"`
	Title      string
	SeriesName string
	Season     int
	Episode    int
	TmdbID     string
	Action     string `gorm:"not null;index"` // refresh / import / skip
	Status     string `gorm:"not null"`
	Detail     string
}

func (WebhookEventModel) TableName() string {
	return "webhook_events"
}
