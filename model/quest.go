package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuestInstance is the durable row for one issued quest token's progress.
type QuestInstance struct {
	InstanceID        string         `gorm:"primaryKey;size:36" json:"instance_id"`
	QuestID           string         `gorm:"index:idx_quest_instance_quest;size:64;not null" json:"quest_id"`
	OwnerID           string         `gorm:"index:idx_quest_instance_owner;size:64" json:"owner_id"`
	HolderID          string         `gorm:"index:idx_quest_instance_holder;size:64" json:"holder_id"`
	Redeemed          bool           `gorm:"default:false" json:"redeemed"`
	ObjectiveProgress datatypes.JSON `json:"objective_progress"` // {"zombies": 3, ...}
	CurrentObjective  int            `gorm:"default:0" json:"current_objective"`
	CurrentProgress   int            `gorm:"default:0" json:"current_progress"`
	RequiredAmount    int            `gorm:"default:0" json:"required_amount"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime:milli" json:"updated_at"`
}
