package models

import "time"

// ManuscriptHistory is one append-only entry in a manuscript's audit trail.
type ManuscriptHistory struct {
	HistoryID    uint           `gorm:"primaryKey;autoIncrement;column:history_id" json:"history_id"`
	ManuscriptID string         `gorm:"column:manuscript_id;type:char(36);index:idx_history_manuscript" json:"manuscript_id"`
	Event        string         `gorm:"column:event" json:"event"`
	FromStage    Stage          `gorm:"column:from_stage" json:"from_stage"`
	ToStage      Stage          `gorm:"column:to_stage" json:"to_stage"`
	FromProgress ProgressStatus `gorm:"column:from_progress" json:"from_progress"`
	ToProgress   ProgressStatus `gorm:"column:to_progress" json:"to_progress"`
	Actor        string         `gorm:"column:actor" json:"actor"`
	Comment      *string        `gorm:"column:comment;type:text" json:"comment,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at;index:idx_history_manuscript" json:"created_at"`
}

func (ManuscriptHistory) TableName() string { return "manuscript_history" }

// NotificationLog records an outbound notice sent as part of a transition.
type NotificationLog struct {
	NotificationID uint      `gorm:"primaryKey;autoIncrement;column:notification_id" json:"notification_id"`
	ManuscriptID   string    `gorm:"column:manuscript_id;type:char(36);index" json:"manuscript_id"`
	Event          string    `gorm:"column:event" json:"event"`
	Recipients     []string  `gorm:"column:recipients;serializer:json" json:"recipients"`
	Subject        string    `gorm:"column:subject" json:"subject"`
	SentAt         time.Time `gorm:"column:sent_at" json:"sent_at"`
}

func (NotificationLog) TableName() string { return "notification_log" }
