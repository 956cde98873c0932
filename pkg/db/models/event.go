package models

import (
	"time"

	"github.com/google/uuid"
)

// EventRecord is the produced event an offer belongs to. StartsAt/EndsAt
// define the window used for equipment conflict checks.
type EventRecord struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Venue     *string   `gorm:"column:venue"`
	StartsAt  time.Time `gorm:"column:starts_at;not null;index:ix_events_starts_at"`
	EndsAt    time.Time `gorm:"column:ends_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (EventRecord) TableName() string { return "events" }
