package quest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/questtoken/model"
	"gorm.io/datatypes"
)

// Store is the durable home of instance rows.
type Store interface {
	Save(ctx context.Context, rows []*model.QuestInstance) error
	LoadAll(ctx context.Context) ([]model.QuestInstance, error)
	Delete(ctx context.Context, instanceID string) error
}

// Queue accepts rows for asynchronous writing.
type Queue interface {
	// Enqueue must not block; false means the row was not accepted.
	Enqueue(row *model.QuestInstance) bool
	// Delete removes a stored row after every row accepted before it.
	Delete(ctx context.Context, instanceID string) error
	// Stop writes everything accepted so far and blocks until done. It
	// reports rows it could not write.
	Stop(ctx context.Context) error
}

// ToRow converts persisted state into its database row.
func ToRow(s State) *model.QuestInstance {
	progress, _ := json.Marshal(s.ObjectiveProgress) // map[string]int always marshals
	return &model.QuestInstance{
		InstanceID:        s.InstanceID,
		QuestID:           s.QuestID,
		OwnerID:           s.OwnerID,
		HolderID:          s.HolderID,
		Redeemed:          s.Redeemed,
		ObjectiveProgress: datatypes.JSON(progress),
		CurrentObjective:  s.CurrentObjective,
		CurrentProgress:   s.CurrentProgress,
		RequiredAmount:    s.RequiredAmount,
		CreatedAt:         s.CreatedAt,
	}
}

// FromRow converts a database row back into state.
func FromRow(row *model.QuestInstance) (State, error) {
	s := State{
		InstanceID:       row.InstanceID,
		QuestID:          row.QuestID,
		OwnerID:          row.OwnerID,
		HolderID:         row.HolderID,
		Redeemed:         row.Redeemed,
		CurrentObjective: row.CurrentObjective,
		CurrentProgress:  row.CurrentProgress,
		RequiredAmount:   row.RequiredAmount,
		CreatedAt:        row.CreatedAt,
	}
	if len(row.ObjectiveProgress) > 0 {
		if err := json.Unmarshal(row.ObjectiveProgress, &s.ObjectiveProgress); err != nil {
			return State{}, fmt.Errorf("quest: instance %s progress: %w", row.InstanceID, err)
		}
	}
	return s, nil
}
