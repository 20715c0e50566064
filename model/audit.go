package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuestEventLog is one recorded quest lifecycle event.
type QuestEventLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Type       string         `gorm:"size:16;not null" json:"type"`
	InstanceID string         `gorm:"index:idx_quest_event_instance;size:36;not null" json:"instance_id"`
	QuestID    string         `gorm:"size:64" json:"quest_id"`
	PlayerID   string         `gorm:"index:idx_quest_event_player;size:64" json:"player_id"`
	Payload    datatypes.JSON `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}
