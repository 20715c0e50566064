package condition

import (
	"errors"
	"strings"
	"testing"

	"github.com/kasuganosora/questtoken/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

type fakeEconomy struct {
	balances  map[string]float64
	failWith  error
	withdraws int
}

func (e *fakeEconomy) Balance(p player.Player) float64 { return e.balances[p.ID()] }

func (e *fakeEconomy) Withdraw(p player.Player, amount float64) error {
	if e.failWith != nil {
		return e.failWith
	}
	e.withdraws++
	e.balances[p.ID()] -= amount
	return nil
}

type fakeInventory struct {
	items map[string]int
}

func (i *fakeInventory) CountItem(_ player.Player, material string) int {
	return i.items[material]
}

func (i *fakeInventory) RemoveItems(_ player.Player, material string, amount int) {
	i.items[material] -= amount
}

type fakeCounter map[string]int

func (c fakeCounter) ActiveCount(playerID string) int { return c[playerID] }

// fakeResolver replaces each key with its value.
type fakeResolver map[string]string

func (r fakeResolver) Resolve(_ player.Player, raw string) string {
	for k, v := range r {
		raw = strings.ReplaceAll(raw, k, v)
	}
	return raw
}

func newPlayer(level int) *player.Snapshot {
	return &player.Snapshot{
		PlayerID:    "p1",
		PlayerName:  "Alex",
		PlayerLevel: level,
		World:       "world",
		Time:        player.Day,
		Mode:        "survival",
		Permissions: map[string]bool{"quests.vip": true},
	}
}

func TestEvaluate_EmptySetPasses(t *testing.T) {
	pl := New(Options{}, nopLogger())
	assert.True(t, pl.Evaluate(newPlayer(1), "q", nil, true).OK())
}

func TestEvaluate_InsufficientBalanceDoesNotWithdraw(t *testing.T) {
	eco := &fakeEconomy{balances: map[string]float64{"p1": 30}}
	pl := New(Options{Economy: eco}, nopLogger())

	out := pl.Evaluate(newPlayer(12), "q", map[string]any{MinLevel: 10, Cost: 50.0}, true)

	assert.False(t, out.OK())
	assert.Equal(t, Cost, out.Condition)
	assert.Equal(t, 30.0, eco.balances["p1"])
	assert.Zero(t, eco.withdraws)
}

func TestEvaluate_CommitWithdrawsExactlyOnce(t *testing.T) {
	eco := &fakeEconomy{balances: map[string]float64{"p1": 100}}
	pl := New(Options{Economy: eco}, nopLogger())
	set := map[string]any{MinLevel: 10, Cost: 50.0}

	require.True(t, pl.Evaluate(newPlayer(12), "q", set, true).OK())
	assert.Equal(t, 50.0, eco.balances["p1"])

	// A dry run afterwards sees the reduced balance and spends nothing.
	assert.True(t, pl.Evaluate(newPlayer(12), "q", set, false).OK())
	assert.Equal(t, 50.0, eco.balances["p1"])
	assert.Equal(t, 1, eco.withdraws)
}

func TestEvaluate_DryRunNeverSpends(t *testing.T) {
	eco := &fakeEconomy{balances: map[string]float64{"p1": 100}}
	inv := &fakeInventory{items: map[string]int{"DIAMOND": 5}}
	pl := New(Options{Economy: eco, Inventory: inv}, nopLogger())
	set := map[string]any{Cost: 25, Items: []any{"diamond:3"}, ConsumeItem: true}

	assert.True(t, pl.Evaluate(newPlayer(1), "q", set, false).OK())
	assert.Equal(t, 100.0, eco.balances["p1"])
	assert.Equal(t, 5, inv.items["DIAMOND"])
}

func TestEvaluate_LaterGateFailureChargesNothing(t *testing.T) {
	eco := &fakeEconomy{balances: map[string]float64{"p1": 100}}
	inv := &fakeInventory{items: map[string]int{"DIAMOND": 5}}
	pl := New(Options{Economy: eco, Inventory: inv}, nopLogger())
	set := map[string]any{
		Cost:        25,
		Items:       []string{"DIAMOND:2"},
		ConsumeItem: true,
		GameModes:   []string{"creative"},
	}

	out := pl.Evaluate(newPlayer(1), "q", set, true)
	assert.False(t, out.OK())
	assert.Equal(t, GameModes, out.Condition)
	assert.Equal(t, 100.0, eco.balances["p1"])
	assert.Equal(t, 5, inv.items["DIAMOND"])
}

func TestEvaluate_ConsumeItems(t *testing.T) {
	inv := &fakeInventory{items: map[string]int{"DIAMOND": 5, "EMERALD": 1}}
	pl := New(Options{Inventory: inv}, nopLogger())
	set := map[string]any{Items: "DIAMOND:3, EMERALD", ConsumeItem: true}

	require.True(t, pl.Evaluate(newPlayer(1), "q", set, true).OK())
	assert.Equal(t, 2, inv.items["DIAMOND"])
	assert.Equal(t, 0, inv.items["EMERALD"])
}

func TestEvaluate_ItemsWithoutConsumeOnlyGate(t *testing.T) {
	inv := &fakeInventory{items: map[string]int{"DIAMOND": 5}}
	pl := New(Options{Inventory: inv}, nopLogger())

	require.True(t, pl.Evaluate(newPlayer(1), "q", map[string]any{Items: []string{"DIAMOND:5"}}, true).OK())
	assert.Equal(t, 5, inv.items["DIAMOND"])

	out := pl.Evaluate(newPlayer(1), "q", map[string]any{Items: []string{"DIAMOND:6"}}, true)
	assert.False(t, out.OK())
	assert.Equal(t, Items, out.Condition)
}

func TestEvaluate_MalformedItemSkipped(t *testing.T) {
	inv := &fakeInventory{items: map[string]int{"DIAMOND": 1}}
	pl := New(Options{Inventory: inv}, nopLogger())

	out := pl.Evaluate(newPlayer(1), "q", map[string]any{Items: []string{"DIAMOND:lots", "DIAMOND:1"}}, false)
	assert.True(t, out.OK())
}

func TestEvaluate_WithdrawErrorFails(t *testing.T) {
	eco := &fakeEconomy{balances: map[string]float64{"p1": 100}, failWith: errors.New("bank offline")}
	inv := &fakeInventory{items: map[string]int{"DIAMOND": 1}}
	pl := New(Options{Economy: eco, Inventory: inv}, nopLogger())

	out := pl.Evaluate(newPlayer(1), "q", map[string]any{Cost: 10, Items: "DIAMOND", ConsumeItem: true}, true)
	assert.False(t, out.OK())
	assert.Equal(t, Cost, out.Condition)
	assert.Equal(t, 1, inv.items["DIAMOND"])
}

func TestEvaluate_NoEconomySkipsMoney(t *testing.T) {
	pl := New(Options{}, nopLogger())
	out := pl.Evaluate(newPlayer(1), "q", map[string]any{MinBalance: 1000, Cost: 500}, true)
	assert.True(t, out.OK())
}

func TestEvaluate_Levels(t *testing.T) {
	pl := New(Options{}, nopLogger())
	set := map[string]any{MinLevel: 5, MaxLevel: "10"}

	assert.False(t, pl.Evaluate(newPlayer(4), "q", set, false).OK())
	assert.True(t, pl.Evaluate(newPlayer(5), "q", set, false).OK())
	assert.True(t, pl.Evaluate(newPlayer(10), "q", set, false).OK())
	out := pl.Evaluate(newPlayer(11), "q", set, false)
	assert.False(t, out.OK())
	assert.Equal(t, MaxLevel, out.Condition)
}

func TestEvaluate_OrderIsFixed(t *testing.T) {
	pl := New(Options{}, nopLogger())
	// Both fail; min-level is reported because it is evaluated first.
	out := pl.Evaluate(newPlayer(1), "q", map[string]any{GameModes: "creative", MinLevel: 5}, false)
	assert.Equal(t, MinLevel, out.Condition)
}

func TestEvaluate_MalformedLevelSkipped(t *testing.T) {
	pl := New(Options{}, nopLogger())
	assert.True(t, pl.Evaluate(newPlayer(1), "q", map[string]any{MinLevel: "ten"}, false).OK())
	assert.True(t, pl.Evaluate(newPlayer(1), "q", map[string]any{MinLevel: 2.5}, false).OK())
}

func TestEvaluate_PermissionWorldTimeMode(t *testing.T) {
	pl := New(Options{}, nopLogger())
	p := newPlayer(1)

	assert.True(t, pl.Evaluate(p, "q", map[string]any{Permission: "quests.vip"}, false).OK())
	assert.False(t, pl.Evaluate(p, "q", map[string]any{Permission: []any{"quests.vip", "quests.admin"}}, false).OK())

	assert.True(t, pl.Evaluate(p, "q", map[string]any{Worlds: []string{"World", "nether"}}, false).OK())
	assert.False(t, pl.Evaluate(p, "q", map[string]any{Worlds: []string{"nether"}}, false).OK())

	assert.True(t, pl.Evaluate(p, "q", map[string]any{Time: "day"}, false).OK())
	assert.False(t, pl.Evaluate(p, "q", map[string]any{Time: "night"}, false).OK())
	assert.True(t, pl.Evaluate(p, "q", map[string]any{Time: "dusk"}, false).OK(), "unknown time is skipped")

	assert.True(t, pl.Evaluate(p, "q", map[string]any{GameModes: "SURVIVAL,adventure"}, false).OK())
	assert.False(t, pl.Evaluate(p, "q", map[string]any{GameModes: []string{"creative"}}, false).OK())
}

func TestEvaluate_MaxActive(t *testing.T) {
	pl := New(Options{Active: fakeCounter{"p1": 3}}, nopLogger())
	assert.False(t, pl.Evaluate(newPlayer(1), "q", map[string]any{MaxActive: 3}, false).OK())
	assert.True(t, pl.Evaluate(newPlayer(1), "q", map[string]any{MaxActive: 4}, false).OK())
}

func TestEvaluate_Expression(t *testing.T) {
	res := fakeResolver{"%kills%": "15", "%rank%": "abc", "%name%": "Alex"}
	pl := New(Options{Resolver: res}, nopLogger())
	p := newPlayer(1)

	assert.True(t, pl.Evaluate(p, "q", map[string]any{Expression: "%kills% >= 10"}, false).OK())
	assert.False(t, pl.Evaluate(p, "q", map[string]any{Expression: "%kills% < 10"}, false).OK())
	assert.True(t, pl.Evaluate(p, "q", map[string]any{Expression: "%rank% == abc"}, false).OK())
	assert.False(t, pl.Evaluate(p, "q", map[string]any{Expression: "%rank% != abc"}, false).OK())
	// No operator: skipped with a warning.
	assert.True(t, pl.Evaluate(p, "q", map[string]any{Expression: "%name%"}, false).OK())
	// Ordering on strings is a configuration error: skipped.
	assert.True(t, pl.Evaluate(p, "q", map[string]any{Expression: "%rank% > abd"}, false).OK())
}

func TestEvaluate_NoResolverSkipsExpression(t *testing.T) {
	pl := New(Options{}, nopLogger())
	assert.True(t, pl.Evaluate(newPlayer(1), "q", map[string]any{Expression: "1 > 2"}, false).OK())
}

func TestEvaluate_UnknownConditionIgnored(t *testing.T) {
	pl := New(Options{}, nopLogger())
	assert.True(t, pl.Evaluate(newPlayer(1), "q", map[string]any{"moon-phase": "full"}, false).OK())
}

func TestParseItem(t *testing.T) {
	req, err := ParseItem("diamond:4")
	require.NoError(t, err)
	assert.Equal(t, ItemRequirement{Material: "DIAMOND", Amount: 4}, req)

	req, err = ParseItem("STICK")
	require.NoError(t, err)
	assert.Equal(t, 1, req.Amount)

	_, err = ParseItem(":4")
	assert.Error(t, err)
	_, err = ParseItem("STICK:0")
	assert.Error(t, err)
	_, err = ParseItem("STICK:x")
	assert.Error(t, err)
}
