package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/questtoken/cache"
	"github.com/kasuganosora/questtoken/game/condition"
	"github.com/kasuganosora/questtoken/game/player"
	"github.com/kasuganosora/questtoken/game/token"
	"github.com/kasuganosora/questtoken/model"
	"github.com/kasuganosora/questtoken/plugin/hook"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrUnknownInstance is returned for an instance id the service does not hold.
var ErrUnknownInstance = errors.New("quest: unknown instance")

// Redeem failure reasons.
const (
	ReasonNoAccess        = "you cannot use this quest"
	ReasonNotComplete     = "quest is not complete"
	ReasonAlreadyRedeemed = "already redeemed"
	ReasonNotOwner        = "this quest belongs to another player"
	ReasonVetoed          = "redemption was cancelled"
)

// Deps are the collaborators of a Service. Everything except Registry may be
// left nil.
type Deps struct {
	Registry   *Registry
	Conditions condition.Options
	Hooks      *hook.HookCenter
	PubSub     cache.PubSub
	// Channel is the pub/sub channel progress events are published on.
	Channel string
	Tokens  *token.Store
	Store   Store
	Queue   Queue
}

// Service owns the live instances and runs every quest operation against
// them. Operations are serialised by one mutex, which gives each instance the
// single mutation timeline the progress model relies on.
type Service struct {
	mu        sync.Mutex
	instances map[string]*Instance

	registry *Registry
	pipeline *condition.Pipeline
	hooks    *hook.HookCenter
	pubsub   cache.PubSub
	channel  string
	tokens   *token.Store
	store    Store
	queue    Queue

	// redeeming is the instance under the redeem gate; it does not count
	// against its own player's active limit.
	redeeming string

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// NewService creates a Service. When deps.Conditions has no ActiveCounter the
// service's own live instances are counted.
func NewService(deps Deps, logger *zap.Logger) *Service {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Hooks == nil {
		deps.Hooks = hook.NewHookCenter()
	}
	s := &Service{
		instances: make(map[string]*Instance),
		registry:  deps.Registry,
		hooks:     deps.Hooks,
		pubsub:    deps.PubSub,
		channel:   deps.Channel,
		tokens:    deps.Tokens,
		store:     deps.Store,
		queue:     deps.Queue,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
	opts := deps.Conditions
	if opts.Active == nil {
		opts.Active = lockedCounter{s}
	}
	s.pipeline = condition.New(opts, logger)
	return s
}

// Registry returns the template registry.
func (s *Service) Registry() *Registry { return s.registry }

// lockedCounter is handed to the pipeline, which only runs while s.mu is held.
type lockedCounter struct{ s *Service }

func (c lockedCounter) ActiveCount(playerID string) int { return c.s.activeCountLocked(playerID) }

// ActiveCount returns how many unredeemed instances playerID owns or was
// issued and has not yet bound.
func (s *Service) ActiveCount(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCountLocked(playerID)
}

func (s *Service) activeCountLocked(playerID string) int {
	n := 0
	for id, inst := range s.instances {
		if id == s.redeeming {
			continue
		}
		if inst.IsHeldBy(playerID) && !inst.Redeemed() {
			n++
		}
	}
	return n
}

// Issue creates a new token of questID for p. The template's conditions are
// evaluated with commit, so a passing issue spends the configured cost and
// items. A failing outcome creates nothing.
func (s *Service) Issue(ctx context.Context, p player.Player, questID string) (View, token.MapAttachment, condition.Outcome, error) {
	t, ok := s.registry.Get(questID)
	if !ok {
		return View{}, nil, condition.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, questID)
	}
	if !t.AccessAllowed(p) {
		return View{}, nil, condition.Failure(condition.Permission, ReasonNoAccess), nil
	}

	s.mu.Lock()
	out := s.pipeline.Evaluate(p, t.ID, t.Conditions, true)
	if !out.OK() {
		s.mu.Unlock()
		s.logger.Debug("quest issue refused",
			zap.String("quest_id", t.ID),
			zap.String("player", p.ID()),
			zap.String("outcome", out.String()))
		return View{}, nil, out, nil
	}
	inst := NewInstance(t, s.newID(), s.now())
	inst.SetHolder(p.ID())
	s.instances[inst.ID()] = inst
	view := newView(inst, t)
	att := token.New(inst, t.LockToPlayer)
	s.mu.Unlock()

	s.logger.Info("quest issued",
		zap.String("quest_id", t.ID),
		zap.String("instance_id", view.InstanceID),
		zap.String("player", p.ID()))
	s.saveToken(ctx, view.InstanceID, att)
	s.emit(ctx, hook.OnQuestIssued, &Event{
		Type: EventIssued, InstanceID: view.InstanceID, QuestID: t.ID, PlayerID: p.ID(),
	})
	return view, att, out, nil
}

// OnAction applies one action by p to each held instance, in order. It
// returns one event per instance that changed.
func (s *Service) OnAction(ctx context.Context, p player.Player, actx ActionContext, held []string) []Event {
	type pending struct {
		hookName string
		ev       Event
	}
	var (
		changed []Event
		fire    []pending
		bound   []View
	)

	s.mu.Lock()
	for _, id := range held {
		inst, ok := s.instances[id]
		if !ok {
			continue
		}
		t, ok := s.registry.Get(inst.QuestID())
		if !ok {
			s.logger.Warn("instance references unknown quest",
				zap.String("instance_id", id), zap.String("quest_id", inst.QuestID()))
			continue
		}
		wasComplete := inst.IsComplete(t)
		before := inst.Percent(t)

		res := Advance(p.ID(), actx, inst, t)
		if !res.Changed() {
			continue
		}
		after := inst.Percent(t)
		ev := Event{
			Type:       EventProgress,
			InstanceID: id,
			QuestID:    t.ID,
			PlayerID:   p.ID(),
			OwnerID:    inst.OwnerID(),
			Advanced:   res.Advanced,
			Percent:    after,
			Complete:   inst.IsComplete(t),
		}
		changed = append(changed, ev)
		fire = append(fire, pending{hook.OnObjectiveProgress, ev})
		for _, m := range crossed(t.Milestones, before, after) {
			mev := ev
			mev.Type, mev.Milestone = EventMilestone, m
			fire = append(fire, pending{hook.OnQuestMilestone, mev})
		}
		if ev.Complete && !wasComplete {
			cev := ev
			cev.Type = EventComplete
			fire = append(fire, pending{hook.OnQuestComplete, cev})
		}
		if res.Bound {
			bound = append(bound, newView(inst, t))
		}
	}
	s.mu.Unlock()

	for _, v := range bound {
		s.logger.Debug("quest bound", zap.String("instance_id", v.InstanceID), zap.String("owner", v.OwnerID))
		s.syncToken(ctx, v)
	}
	for i := range fire {
		if fire[i].ev.Type == EventComplete {
			s.logger.Info("quest complete",
				zap.String("quest_id", fire[i].ev.QuestID),
				zap.String("instance_id", fire[i].ev.InstanceID))
		}
		s.emit(ctx, fire[i].hookName, &fire[i].ev)
	}
	return changed
}

// CheckRedeem reports whether p could redeem the instance now. Nothing is
// spent or changed.
func (s *Service) CheckRedeem(p player.Player, instanceID string) (condition.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, out, err := s.redeemGateLocked(p, instanceID)
	return out, err
}

// Redeem marks the instance redeemed once it is complete and its conditions
// pass. Plugins may cancel through hook.BeforeQuestRedeem.
func (s *Service) Redeem(ctx context.Context, p player.Player, instanceID string) (condition.Outcome, error) {
	s.mu.Lock()
	inst, t, out, err := s.redeemGateLocked(p, instanceID)
	if err != nil || !out.OK() {
		s.mu.Unlock()
		return out, err
	}
	ev := Event{
		Type: EventRedeemed, InstanceID: instanceID, QuestID: t.ID, PlayerID: p.ID(),
		OwnerID: inst.OwnerID(), Percent: 100, Complete: true,
	}
	s.mu.Unlock()

	if _, herr := s.hooks.Trigger(ctx, hook.BeforeQuestRedeem, &ev); errors.Is(herr, hook.ErrInterrupt) {
		return condition.Failure("", ReasonVetoed), nil
	}

	s.mu.Lock()
	// Another caller may have redeemed or removed it while hooks ran.
	inst, ok := s.instances[instanceID]
	if !ok {
		s.mu.Unlock()
		return condition.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	if !inst.MarkRedeemed() {
		s.mu.Unlock()
		return condition.Failure("", ReasonAlreadyRedeemed), nil
	}
	view := newView(inst, t)
	s.mu.Unlock()

	s.logger.Info("quest redeemed",
		zap.String("quest_id", t.ID),
		zap.String("instance_id", instanceID),
		zap.String("player", p.ID()))
	s.syncToken(ctx, view)
	s.emit(ctx, hook.OnQuestRedeemed, &ev)
	return condition.Success(), nil
}

func (s *Service) redeemGateLocked(p player.Player, instanceID string) (*Instance, *Template, condition.Outcome, error) {
	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, nil, condition.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	t, ok := s.registry.Get(inst.QuestID())
	if !ok {
		return nil, nil, condition.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, inst.QuestID())
	}
	switch {
	case inst.Redeemed():
		return inst, t, condition.Failure("", ReasonAlreadyRedeemed), nil
	case !t.AccessAllowed(p):
		return inst, t, condition.Failure(condition.Permission, ReasonNoAccess), nil
	case t.LockToPlayer && inst.IsBound() && !inst.IsOwnedBy(p.ID()):
		return inst, t, condition.Failure("", ReasonNotOwner), nil
	case !inst.IsComplete(t):
		return inst, t, condition.Failure("", ReasonNotComplete), nil
	}
	s.redeeming = instanceID
	defer func() { s.redeeming = "" }()
	return inst, t, s.pipeline.Evaluate(p, t.ID, t.Conditions, false), nil
}

// Get returns a view of one instance.
func (s *Service) Get(instanceID string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[instanceID]
	if !ok {
		return View{}, false
	}
	t, _ := s.registry.Get(inst.QuestID())
	return newView(inst, t), true
}

// InstancesOwnedBy returns views of the instances bound to playerID, oldest first.
func (s *Service) InstancesOwnedBy(playerID string) []View {
	s.mu.Lock()
	var out []View
	for _, inst := range s.instances {
		if inst.IsOwnedBy(playerID) {
			t, _ := s.registry.Get(inst.QuestID())
			out = append(out, newView(inst, t))
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].InstanceID < out[j].InstanceID
	})
	return out
}

// Count returns the number of live instances.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// Remove drops an instance whose token was destroyed, in memory and in
// storage. When the stored row cannot be deleted the instance stays live.
func (s *Service) Remove(ctx context.Context, instanceID string) error {
	s.mu.Lock()
	inst, ok := s.instances[instanceID]
	delete(s.instances, instanceID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	if err := s.deleteStored(ctx, instanceID); err != nil {
		s.mu.Lock()
		if _, live := s.instances[instanceID]; !live {
			inst.markDirty()
			s.instances[instanceID] = inst
		}
		s.mu.Unlock()
		return fmt.Errorf("quest: remove %s: %w", instanceID, err)
	}
	if s.tokens != nil {
		if err := s.tokens.Delete(ctx, instanceID); err != nil {
			s.logger.Warn("token delete failed", zap.String("instance_id", instanceID), zap.Error(err))
		}
	}
	s.logger.Info("quest instance removed", zap.String("instance_id", instanceID))
	return nil
}

// deleteStored goes through the queue when there is one, so a snapshot
// queued earlier cannot bring the row back.
func (s *Service) deleteStored(ctx context.Context, instanceID string) error {
	switch {
	case s.queue != nil:
		return s.queue.Delete(ctx, instanceID)
	case s.store != nil:
		return s.store.Delete(ctx, instanceID)
	}
	return nil
}

// Load restores every stored instance. Instances already live are kept.
func (s *Service) Load(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	rows, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range rows {
		st, err := FromRow(&rows[i])
		if err != nil {
			s.logger.Warn("skipping unreadable instance", zap.Error(err))
			continue
		}
		if _, live := s.instances[st.InstanceID]; live {
			continue
		}
		if _, ok := s.registry.Get(st.QuestID); !ok {
			s.logger.Warn("loaded instance references unknown quest",
				zap.String("instance_id", st.InstanceID), zap.String("quest_id", st.QuestID))
		}
		s.instances[st.InstanceID] = RestoreInstance(st)
		n++
	}
	s.logger.Info("quest instances loaded", zap.Int("count", n))
	return n, nil
}

// Snapshot queues every instance changed since the last snapshot without
// blocking. Instances the queue cannot take stay dirty for the next round.
func (s *Service) Snapshot() int {
	if s.queue == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := 0
	for _, inst := range s.instances {
		if !inst.takeDirty() {
			continue
		}
		if s.queue.Enqueue(ToRow(inst.Snapshot())) {
			queued++
		} else {
			inst.markDirty()
		}
	}
	if queued > 0 {
		s.logger.Debug("quest snapshot queued", zap.Int("instances", queued))
	}
	return queued
}

// Shutdown drains the queue and then writes every remaining dirty instance
// synchronously. When the queue lost writes every live instance is rewritten.
// It returns once the data is stored or ctx ends.
func (s *Service) Shutdown(ctx context.Context) error {
	var queueErr error
	if s.queue != nil {
		if err := s.queue.Stop(ctx); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("quest: drain snapshot queue: %w", err)
			}
			s.logger.Warn("snapshot queue lost writes, rewriting every instance", zap.Error(err))
			queueErr = err
			s.mu.Lock()
			for _, inst := range s.instances {
				inst.markDirty()
			}
			s.mu.Unlock()
		}
	}
	if s.store == nil {
		return queueErr
	}
	s.mu.Lock()
	var rows []*model.QuestInstance
	var dirty []*Instance
	for _, inst := range s.instances {
		if inst.takeDirty() {
			rows = append(rows, ToRow(inst.Snapshot()))
			dirty = append(dirty, inst)
		}
	}
	s.mu.Unlock()

	if err := s.store.Save(ctx, rows); err != nil {
		s.mu.Lock()
		for _, inst := range dirty {
			inst.markDirty()
		}
		s.mu.Unlock()
		return multierr.Append(queueErr, fmt.Errorf("quest: final snapshot: %w", err))
	}
	s.logger.Info("quest final snapshot written", zap.Int("instances", len(rows)))
	return nil
}

func (s *Service) saveToken(ctx context.Context, instanceID string, att token.MapAttachment) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Save(ctx, instanceID, att); err != nil {
		s.logger.Warn("token save failed", zap.String("instance_id", instanceID), zap.Error(err))
	}
}

// syncToken refreshes the stored attachment of an instance's token.
func (s *Service) syncToken(ctx context.Context, v View) {
	if s.tokens == nil {
		return
	}
	att, err := s.tokens.Load(ctx, v.InstanceID)
	if err != nil {
		s.logger.Warn("token load failed", zap.String("instance_id", v.InstanceID), zap.Error(err))
		return
	}
	token.Sync(att, stateSource{v.State})
	s.saveToken(ctx, v.InstanceID, att)
}

// stateSource adapts a State to token.Source.
type stateSource struct{ st State }

func (s stateSource) ID() string { return s.st.InstanceID }
func (s stateSource) QuestID() string { return s.st.QuestID }
func (s stateSource) OwnerID() string { return s.st.OwnerID }
func (s stateSource) Redeemed() bool { return s.st.Redeemed }
func (s stateSource) CreatedAt() time.Time { return s.st.CreatedAt }

// emit runs the hook chain for name and publishes ev. Hook failures are
// logged; they never undo the state change that produced the event.
func (s *Service) emit(ctx context.Context, name string, ev *Event) {
	if _, err := s.hooks.Trigger(ctx, name, ev); err != nil && !errors.Is(err, hook.ErrInterrupt) {
		s.logger.Warn("quest hook failed", zap.String("hook", name), zap.Error(err))
	}
	if s.pubsub == nil || s.channel == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.pubsub.Publish(ctx, s.channel, string(payload)); err != nil {
		s.logger.Warn("progress publish failed", zap.String("channel", s.channel), zap.Error(err))
	}
}
