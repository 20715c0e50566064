package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	killZombie = ActionContext{Action: ActionEntityKill, Entity: Entity{Type: "ZOMBIE", Category: EntityHostile}}
	pickBone   = ActionContext{Action: ActionItemPickup, Material: "BONE"}
	runSpawn   = ActionContext{Action: ActionCommand, Command: "/spawn"}
	breakStone = ActionContext{Action: ActionBlockBreak, Material: "STONE"}
)

func TestAdvance_LegacyMatchBindsAndCounts(t *testing.T) {
	tmpl := legacyTemplate()
	inst := newInst(tmpl)

	res := Advance("p1", breakStone, inst, tmpl)
	assert.True(t, res.Changed())
	assert.True(t, res.Bound)
	assert.Equal(t, map[string]int{"": 1}, res.Advanced)
	assert.Equal(t, "p1", inst.OwnerID())

	stack := breakStone
	stack.Quantity = 10
	res = Advance("p1", stack, inst, tmpl)
	assert.Equal(t, 4, res.Advanced[""])
	assert.False(t, res.Bound)
	assert.True(t, inst.IsComplete(tmpl))
}

func TestAdvance_LegacyNoMatch(t *testing.T) {
	tmpl := legacyTemplate()
	inst := newInst(tmpl)

	res := Advance("p1", pickBone, inst, tmpl)
	assert.False(t, res.Changed())
	assert.False(t, inst.IsBound(), "no qualifying progress, no binding")
}

func TestAdvance_NonSequentialAdvancesEveryMatch(t *testing.T) {
	tmpl := &Template{
		ID: "dual",
		Objectives: []Objective{
			{ID: "any-kill", Kind: KindKill, RequiredAmount: 2},
			{ID: "hostile-kill", Kind: KindKill, Entity: EntityFilter{Kind: FilterHostile}, RequiredAmount: 2},
		},
	}
	inst := NewInstance(tmpl, "i", inst0)

	res := Advance("p1", killZombie, inst, tmpl)
	assert.Equal(t, map[string]int{"any-kill": 1, "hostile-kill": 1}, res.Advanced)
	assert.Zero(t, res.CursorMoved)
}

func TestAdvance_SequentialOnlyCurrentObjective(t *testing.T) {
	tmpl := multiTemplate(true)
	inst := newInst(tmpl)

	// Bones are objective #2; nothing happens while zombies are current.
	res := Advance("p1", pickBone, inst, tmpl)
	assert.False(t, res.Changed())
	assert.Zero(t, inst.Counter("bones"))

	for i := 0; i < 2; i++ {
		Advance("p1", killZombie, inst, tmpl)
	}
	assert.Zero(t, inst.Cursor())

	res = Advance("p1", killZombie, inst, tmpl)
	assert.Equal(t, 1, res.CursorMoved, "capping the current objective moves the cursor")
	assert.Equal(t, 1, inst.Cursor())

	// Extra kills no longer count.
	res = Advance("p1", killZombie, inst, tmpl)
	assert.False(t, res.Changed())
	assert.Equal(t, 3, inst.Counter("zombies"))

	// The next context in the same batch already matches objective #2.
	res = Advance("p1", pickBone, inst, tmpl)
	assert.Equal(t, map[string]int{"bones": 1}, res.Advanced)
}

func TestAdvance_SequentialOneContextOneObjective(t *testing.T) {
	tmpl := &Template{
		ID:         "chain",
		Sequential: true,
		Objectives: []Objective{
			{ID: "first", Kind: KindBreak, RequiredAmount: 1},
			{ID: "second", Kind: KindBreak, RequiredAmount: 1},
		},
	}
	inst := NewInstance(tmpl, "i", inst0)

	res := Advance("p1", breakStone, inst, tmpl)
	assert.Equal(t, map[string]int{"first": 1}, res.Advanced)
	assert.Zero(t, inst.Counter("second"))
	assert.False(t, inst.IsComplete(tmpl))

	res = Advance("p1", breakStone, inst, tmpl)
	assert.Equal(t, map[string]int{"second": 1}, res.Advanced)
	assert.True(t, inst.IsComplete(tmpl))
	assert.Equal(t, 2, inst.Cursor())
}

func TestAdvance_SequentialFullRunCompletes(t *testing.T) {
	tmpl := multiTemplate(true)
	inst := newInst(tmpl)

	for _, ctx := range []ActionContext{killZombie, killZombie, killZombie, pickBone, pickBone} {
		Advance("p1", ctx, inst, tmpl)
		assert.False(t, inst.IsComplete(tmpl))
	}
	Advance("p1", runSpawn, inst, tmpl)
	assert.True(t, inst.IsComplete(tmpl))
}

func TestAdvance_SequentialCatchesUpDriftedCursor(t *testing.T) {
	tmpl := multiTemplate(true)
	inst := newInst(tmpl)
	// Counter capped by an earlier write but cursor never moved.
	inst.AdvanceObjective(tmpl, "zombies", 3)
	require.Zero(t, inst.Cursor())

	res := Advance("p1", pickBone, inst, tmpl)
	assert.Equal(t, 1, res.CursorMoved)
	assert.Equal(t, 1, inst.Counter("bones"))
}

func TestAdvance_LockedToOtherPlayer(t *testing.T) {
	tmpl := legacyTemplate()
	tmpl.LockToPlayer = true
	inst := newInst(tmpl)

	Advance("p1", breakStone, inst, tmpl)
	res := Advance("p2", breakStone, inst, tmpl)
	assert.False(t, res.Changed())
	assert.Equal(t, 1, inst.LegacyProgress())
}

func TestAdvance_UnlockedCountsForNewHolderButKeepsOwner(t *testing.T) {
	tmpl := legacyTemplate()
	inst := newInst(tmpl)

	Advance("p1", breakStone, inst, tmpl)
	res := Advance("p2", breakStone, inst, tmpl)
	assert.True(t, res.Changed())
	assert.False(t, res.Bound)
	assert.Equal(t, "p1", inst.OwnerID())
	assert.Equal(t, 2, inst.LegacyProgress())
}

func TestAdvance_RedeemedIsNoop(t *testing.T) {
	tmpl := legacyTemplate()
	inst := newInst(tmpl)
	inst.MarkRedeemed()

	res := Advance("p1", breakStone, inst, tmpl)
	assert.False(t, res.Changed())
	assert.False(t, inst.IsBound())
}
