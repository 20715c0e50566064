// Package audit keeps a durable ledger of quest lifecycle events. Events are
// collected from hooks and written to the database in batches.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/questtoken/game/quest"
	"github.com/kasuganosora/questtoken/model"
	"github.com/kasuganosora/questtoken/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HookName is the name audit hooks are registered under.
const HookName = "audit"

// Service logs quest events asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.QuestEventLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.QuestEventLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Attach registers the ledger on issue, completion and redemption at a
// priority after the usual plugin range.
func (svc *Service) Attach(hc *hook.HookCenter) {
	for _, ev := range []string{hook.OnQuestIssued, hook.OnQuestComplete, hook.OnQuestRedeemed} {
		hc.Register(ev, 1000, HookName, svc.onEvent)
	}
}

func (svc *Service) onEvent(_ context.Context, _ string, data any) (any, error) {
	if ev, ok := data.(*quest.Event); ok {
		svc.Log(ev)
	}
	return data, nil
}

// Log enqueues ev for async DB write. Entries are dropped when the queue is full.
func (svc *Service) Log(ev *quest.Event) {
	payload, _ := json.Marshal(ev)
	record := &model.QuestEventLog{
		Type:       ev.Type,
		InstanceID: ev.InstanceID,
		QuestID:    ev.QuestID,
		PlayerID:   ev.PlayerID,
		Payload:    datatypes.JSON(payload),
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("type", ev.Type), zap.String("instance_id", ev.InstanceID))
	}
}

// History returns the recorded events of one instance, oldest first.
func (svc *Service) History(ctx context.Context, instanceID string) ([]model.QuestEventLog, error) {
	var logs []model.QuestEventLog
	err := svc.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("id").
		Find(&logs).Error
	return logs, err
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop() {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.QuestEventLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
