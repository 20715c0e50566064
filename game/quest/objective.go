package quest

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/questtoken/game/compare"
)

// Action categorizes a gameplay event fed to the quest core.
type Action string

const (
	ActionBlockBreak      Action = "block_break"
	ActionBlockPlace      Action = "block_place"
	ActionEntityKill      Action = "entity_kill"
	ActionItemPickup      Action = "item_pickup"
	ActionItemCraft       Action = "item_craft"
	ActionFishCatch       Action = "fish_catch"
	ActionEntityBreed     Action = "entity_breed"
	ActionItemConsume     Action = "item_consume"
	ActionItemSmelt       Action = "item_smelt"
	ActionItemEnchant     Action = "item_enchant"
	ActionCommand         Action = "command"
	ActionPlaceholderPoll Action = "placeholder_poll"
	ActionDistanceTravel  Action = "distance_travel"
)

// EntityCategory is the coarse disposition of an entity.
type EntityCategory string

const (
	EntityHostile EntityCategory = "hostile"
	EntityPassive EntityCategory = "passive"
	EntityNeutral EntityCategory = "neutral"
)

// Entity is the subject of kill and breed actions.
type Entity struct {
	Type     string
	Category EntityCategory
}

// ActionContext is one gameplay action, produced by the event layer.
type ActionContext struct {
	Action      Action
	Material    string
	Entity      Entity
	Command     string
	Placeholder string
	Value       float64
	// Quantity is how many units the action represents; zero means one.
	// Travel actions carry the distance covered.
	Quantity int
}

// Amount returns the progress units this action is worth.
func (c ActionContext) Amount() int {
	if c.Quantity < 1 {
		return 1
	}
	return c.Quantity
}

// ObjectiveKind is the closed set of goal kinds.
type ObjectiveKind string

const (
	KindBreak       ObjectiveKind = "break"
	KindPlace       ObjectiveKind = "place"
	KindKill        ObjectiveKind = "kill"
	KindCollect     ObjectiveKind = "collect"
	KindCraft       ObjectiveKind = "craft"
	KindFish        ObjectiveKind = "fish"
	KindBreed       ObjectiveKind = "breed"
	KindConsume     ObjectiveKind = "consume"
	KindSmelt       ObjectiveKind = "smelt"
	KindEnchant     ObjectiveKind = "enchant"
	KindCommand     ObjectiveKind = "command"
	KindPlaceholder ObjectiveKind = "placeholder"
	KindTravel      ObjectiveKind = "travel"
)

// Kinds lists every objective kind.
var Kinds = []ObjectiveKind{
	KindBreak, KindPlace, KindKill, KindCollect, KindCraft, KindFish, KindBreed,
	KindConsume, KindSmelt, KindEnchant, KindCommand, KindPlaceholder, KindTravel,
}

// FilterKind selects which entities an EntityFilter accepts.
type FilterKind string

const (
	FilterAny      FilterKind = "any"
	FilterHostile  FilterKind = "hostile"
	FilterPassive  FilterKind = "passive"
	FilterSpecific FilterKind = "specific"
)

// EntityFilter restricts kill/breed objectives. The zero value accepts any entity.
type EntityFilter struct {
	Kind FilterKind
	Type string // only for FilterSpecific
}

// Accepts reports whether e passes the filter.
func (f EntityFilter) Accepts(e Entity) bool {
	switch f.Kind {
	case FilterAny, "":
		return true
	case FilterHostile:
		return e.Category == EntityHostile
	case FilterPassive:
		return e.Category == EntityPassive
	case FilterSpecific:
		return strings.EqualFold(f.Type, e.Type)
	}
	return false
}

func (f EntityFilter) describe() string {
	switch f.Kind {
	case FilterHostile:
		return "hostile mobs"
	case FilterPassive:
		return "passive mobs"
	case FilterSpecific:
		return displayName(f.Type)
	}
	return "any mob"
}

// Objective is one typed sub-goal of a template. Objectives are immutable
// once the template is loaded.
type Objective struct {
	ID             string
	Kind           ObjectiveKind
	RequiredAmount int

	// Material is the block/item the action must involve; empty matches any.
	Material string
	Entity   EntityFilter
	// Command is matched as a case-insensitive prefix of the executed command.
	Command string

	Placeholder string
	Operator    compare.Operator
	Threshold   float64

	// Label overrides the generated description when set.
	Label string
}

// kindAction maps each kind to the action that can advance it.
var kindAction = map[ObjectiveKind]Action{
	KindBreak:       ActionBlockBreak,
	KindPlace:       ActionBlockPlace,
	KindKill:        ActionEntityKill,
	KindCollect:     ActionItemPickup,
	KindCraft:       ActionItemCraft,
	KindFish:        ActionFishCatch,
	KindBreed:       ActionEntityBreed,
	KindConsume:     ActionItemConsume,
	KindSmelt:       ActionItemSmelt,
	KindEnchant:     ActionItemEnchant,
	KindCommand:     ActionCommand,
	KindPlaceholder: ActionPlaceholderPoll,
	KindTravel:      ActionDistanceTravel,
}

// Matches reports whether ctx advances o.
func (o *Objective) Matches(ctx ActionContext) bool {
	if kindAction[o.Kind] != ctx.Action {
		return false
	}
	switch o.Kind {
	case KindBreak, KindPlace, KindCollect, KindCraft, KindFish,
		KindConsume, KindSmelt, KindEnchant:
		return materialMatches(o.Material, ctx.Material)
	case KindKill, KindBreed:
		return o.Entity.Accepts(ctx.Entity)
	case KindCommand:
		return commandMatches(o.Command, ctx.Command)
	case KindPlaceholder:
		if o.Placeholder != ctx.Placeholder {
			return false
		}
		op := o.Operator
		if op == "" {
			op = compare.GreaterOrEqual
		}
		return compare.Numbers(ctx.Value, op, o.Threshold)
	case KindTravel:
		return true
	}
	return false
}

func materialMatches(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

func commandMatches(want, got string) bool {
	want = strings.TrimPrefix(strings.TrimSpace(want), "/")
	got = strings.TrimPrefix(strings.TrimSpace(got), "/")
	if want == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(got), strings.ToLower(want))
}

// Description renders the objective from its static parameters only.
func (o *Objective) Description() string {
	if o.Label != "" {
		return o.Label
	}
	n := o.RequiredAmount
	mat := "any block"
	if o.Material != "" {
		mat = displayName(o.Material)
	}
	switch o.Kind {
	case KindBreak:
		return fmt.Sprintf("Break %d %s", n, mat)
	case KindPlace:
		return fmt.Sprintf("Place %d %s", n, mat)
	case KindKill:
		return fmt.Sprintf("Kill %d %s", n, o.Entity.describe())
	case KindBreed:
		return fmt.Sprintf("Breed %d %s", n, o.Entity.describe())
	case KindCollect:
		return fmt.Sprintf("Collect %d %s", n, itemName(o.Material))
	case KindCraft:
		return fmt.Sprintf("Craft %d %s", n, itemName(o.Material))
	case KindFish:
		return fmt.Sprintf("Catch %d %s", n, itemName(o.Material))
	case KindConsume:
		return fmt.Sprintf("Consume %d %s", n, itemName(o.Material))
	case KindSmelt:
		return fmt.Sprintf("Smelt %d %s", n, itemName(o.Material))
	case KindEnchant:
		return fmt.Sprintf("Enchant %d %s", n, itemName(o.Material))
	case KindCommand:
		return fmt.Sprintf("Run /%s %d times", strings.TrimPrefix(o.Command, "/"), n)
	case KindPlaceholder:
		op := o.Operator
		if op == "" {
			op = compare.GreaterOrEqual
		}
		return fmt.Sprintf("Reach %s %s %g", o.Placeholder, op, o.Threshold)
	case KindTravel:
		return fmt.Sprintf("Travel %d blocks", n)
	}
	return string(o.Kind)
}

func itemName(material string) string {
	if material == "" {
		return "any item"
	}
	return displayName(material)
}

// displayName turns DIAMOND_ORE into "diamond ore".
func displayName(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "_", " "))
}
