package quest

import (
	"fmt"
	"time"
)

// Instance is the mutable progress of one issued token. Every token gets its
// own Instance, so two tokens of the same template never share state.
//
// None of the mutators fail: out-of-range input is clamped and repeated
// transitions are no-ops. Passing a nil or foreign template panics.
type Instance struct {
	id        string
	questID   string
	ownerID   string
	holderID  string
	redeemed  bool
	counters  map[string]int
	cursor    int
	legacy    int
	required  int
	createdAt time.Time
	dirty     bool
}

// State is the plain-data form of an Instance used for persistence.
type State struct {
	InstanceID        string         `json:"instance_id"`
	QuestID           string         `json:"quest_id"`
	OwnerID           string         `json:"owner_id,omitempty"`
	HolderID          string         `json:"holder_id,omitempty"`
	Redeemed          bool           `json:"redeemed"`
	ObjectiveProgress map[string]int `json:"objective_progress,omitempty"`
	CurrentObjective  int            `json:"current_objective"`
	CurrentProgress   int            `json:"current_progress"`
	RequiredAmount    int            `json:"required_amount"`
	CreatedAt         time.Time      `json:"created_at"`
}

// NewInstance creates a fresh, unbound instance of t.
func NewInstance(t *Template, id string, now time.Time) *Instance {
	if t == nil {
		panic("quest: NewInstance with nil template")
	}
	inst := &Instance{
		id:        id,
		questID:   t.ID,
		counters:  make(map[string]int, len(t.Objectives)),
		required:  t.Goal.RequiredAmount,
		createdAt: now,
		dirty:     true,
	}
	for _, o := range t.Objectives {
		inst.counters[o.ID] = 0
	}
	return inst
}

// RestoreInstance rebuilds an instance from persisted state.
func RestoreInstance(s State) *Instance {
	counters := make(map[string]int, len(s.ObjectiveProgress))
	for k, v := range s.ObjectiveProgress {
		if v < 0 {
			v = 0
		}
		counters[k] = v
	}
	cursor := s.CurrentObjective
	if cursor < 0 {
		cursor = 0
	}
	legacy := s.CurrentProgress
	if legacy < 0 {
		legacy = 0
	}
	return &Instance{
		id:        s.InstanceID,
		questID:   s.QuestID,
		ownerID:   s.OwnerID,
		holderID:  s.HolderID,
		redeemed:  s.Redeemed,
		counters:  counters,
		cursor:    cursor,
		legacy:    legacy,
		required:  s.RequiredAmount,
		createdAt: s.CreatedAt,
	}
}

// Snapshot returns a deep copy of the instance state.
func (i *Instance) Snapshot() State {
	counters := make(map[string]int, len(i.counters))
	for k, v := range i.counters {
		counters[k] = v
	}
	return State{
		InstanceID:        i.id,
		QuestID:           i.questID,
		OwnerID:           i.ownerID,
		HolderID:          i.holderID,
		Redeemed:          i.redeemed,
		ObjectiveProgress: counters,
		CurrentObjective:  i.cursor,
		CurrentProgress:   i.legacy,
		RequiredAmount:    i.required,
		CreatedAt:         i.createdAt,
	}
}

func (i *Instance) ID() string { return i.id }
func (i *Instance) QuestID() string { return i.questID }
func (i *Instance) OwnerID() string { return i.ownerID }
func (i *Instance) HolderID() string { return i.holderID }
func (i *Instance) IsBound() bool { return i.ownerID != "" }
func (i *Instance) Redeemed() bool { return i.redeemed }
func (i *Instance) Cursor() int { return i.cursor }
func (i *Instance) LegacyProgress() int { return i.legacy }
func (i *Instance) RequiredAmount() int { return i.required }
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// IsOwnedBy reports whether the instance is bound to playerID.
func (i *Instance) IsOwnedBy(playerID string) bool {
	return i.ownerID != "" && i.ownerID == playerID
}

// IsHeldBy reports whether the instance counts against playerID: it is bound
// to them, or it is still unbound and was issued to them.
func (i *Instance) IsHeldBy(playerID string) bool {
	if playerID == "" {
		return false
	}
	if i.ownerID != "" {
		return i.ownerID == playerID
	}
	return i.holderID == playerID
}

// SetHolder records the player an unbound instance was handed to.
func (i *Instance) SetHolder(playerID string) {
	if i.holderID == playerID {
		return
	}
	i.holderID = playerID
	i.dirty = true
}

// Counter returns the progress recorded for an objective.
func (i *Instance) Counter(objectiveID string) int {
	return i.counters[objectiveID]
}

// Bind assigns the instance to playerID. Only the first call has an effect;
// it reports whether this call performed the binding.
func (i *Instance) Bind(playerID string) bool {
	if i.ownerID != "" || playerID == "" {
		return false
	}
	i.ownerID = playerID
	i.dirty = true
	return true
}

// AdvanceObjective adds amount to an objective counter, clamped to the
// objective's required amount. It returns the units actually applied.
func (i *Instance) AdvanceObjective(t *Template, objectiveID string, amount int) int {
	i.mustTemplate(t)
	if i.redeemed || amount <= 0 {
		return 0
	}
	o, ok := t.Objective(objectiveID)
	if !ok {
		return 0
	}
	before := i.counters[objectiveID]
	after := clamp(before+amount, o.RequiredAmount)
	if after == before {
		return 0
	}
	i.counters[objectiveID] = after
	i.dirty = true
	return after - before
}

// AdvanceLegacy is AdvanceObjective for templates without objectives.
func (i *Instance) AdvanceLegacy(amount int) int {
	if i.redeemed || amount <= 0 {
		return 0
	}
	before := i.legacy
	after := clamp(before+amount, i.required)
	if after == before {
		return 0
	}
	i.legacy = after
	i.dirty = true
	return after - before
}

// AdvanceSequentialCursor moves the cursor one objective forward. The cursor
// never moves back and never passes one beyond the last objective.
func (i *Instance) AdvanceSequentialCursor(t *Template) bool {
	i.mustTemplate(t)
	if !t.Sequential || i.cursor >= len(t.Objectives) {
		return false
	}
	i.cursor++
	i.dirty = true
	return true
}

// MarkRedeemed flags the instance as redeemed. Repeated calls are no-ops; it
// reports whether this call changed the state.
func (i *Instance) MarkRedeemed() bool {
	if i.redeemed {
		return false
	}
	i.redeemed = true
	i.dirty = true
	return true
}

// IsComplete derives completion from the counters and the cursor.
func (i *Instance) IsComplete(t *Template) bool {
	i.mustTemplate(t)
	if !t.HasObjectives() {
		return i.legacy >= i.required
	}
	if t.Sequential && i.cursor < len(t.Objectives)-1 {
		return false
	}
	for _, o := range t.Objectives {
		if i.counters[o.ID] < o.RequiredAmount {
			return false
		}
	}
	return true
}

// ActiveObjectives returns the objectives that currently accept progress:
// the one at the cursor for sequential templates, every unfinished one
// otherwise.
func (i *Instance) ActiveObjectives(t *Template) []*Objective {
	i.mustTemplate(t)
	if i.redeemed || !t.HasObjectives() {
		return nil
	}
	if t.Sequential {
		if i.cursor >= len(t.Objectives) {
			return nil
		}
		o := &t.Objectives[i.cursor]
		if i.counters[o.ID] >= o.RequiredAmount {
			return nil
		}
		return []*Objective{o}
	}
	active := make([]*Objective, 0, len(t.Objectives))
	for k := range t.Objectives {
		o := &t.Objectives[k]
		if i.counters[o.ID] < o.RequiredAmount {
			active = append(active, o)
		}
	}
	return active
}

// Percent is overall completion in [0, 100].
func (i *Instance) Percent(t *Template) int {
	i.mustTemplate(t)
	if !t.HasObjectives() {
		if i.required <= 0 {
			return 100
		}
		return min(i.legacy, i.required) * 100 / i.required
	}
	done, total := 0, 0
	for _, o := range t.Objectives {
		done += min(i.counters[o.ID], o.RequiredAmount)
		total += o.RequiredAmount
	}
	if total == 0 {
		return 100
	}
	return done * 100 / total
}

// takeDirty reports and clears the unsaved-changes flag.
func (i *Instance) takeDirty() bool {
	d := i.dirty
	i.dirty = false
	return d
}

func (i *Instance) markDirty() { i.dirty = true }

func (i *Instance) mustTemplate(t *Template) {
	if t == nil {
		panic(fmt.Sprintf("quest: instance %s queried with nil template", i.id))
	}
	if t.ID != i.questID {
		panic(fmt.Sprintf("quest: instance %s belongs to %q, got template %q", i.id, i.questID, t.ID))
	}
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
