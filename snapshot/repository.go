// Package snapshot persists quest instance state. Writes are batched by an
// asynchronous Writer so progress mutation never waits on the database.
package snapshot

import (
	"context"
	"fmt"

	"github.com/kasuganosora/questtoken/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes model.QuestInstance rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save upserts rows keyed by instance id.
func (r *Repository) Save(ctx context.Context, rows []*model.QuestInstance) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("snapshot: save %d rows: %w", len(rows), err)
	}
	return nil
}

// LoadAll returns every stored instance.
func (r *Repository) LoadAll(ctx context.Context) ([]model.QuestInstance, error) {
	var rows []model.QuestInstance
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}
	return rows, nil
}

// Get returns one instance row. It returns gorm.ErrRecordNotFound when absent.
func (r *Repository) Get(ctx context.Context, instanceID string) (*model.QuestInstance, error) {
	var row model.QuestInstance
	if err := r.db.WithContext(ctx).First(&row, "instance_id = ?", instanceID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes an instance row. Deleting a missing row is not an error.
func (r *Repository) Delete(ctx context.Context, instanceID string) error {
	err := r.db.WithContext(ctx).Delete(&model.QuestInstance{}, "instance_id = ?", instanceID).Error
	if err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", instanceID, err)
	}
	return nil
}
