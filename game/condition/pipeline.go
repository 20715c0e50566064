package condition

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/questtoken/game/compare"
	"github.com/kasuganosora/questtoken/game/player"
	"go.uber.org/zap"
)

// ActiveCounter reports how many live, unredeemed instances a player owns.
type ActiveCounter interface {
	ActiveCount(playerID string) int
}

// Resolver substitutes external variables into an expression string.
type Resolver interface {
	Resolve(p player.Player, raw string) string
}

// Options carries the collaborators of a Pipeline. Any of them may be nil,
// which disables the conditions that depend on it.
type Options struct {
	Economy   player.Economy
	Inventory player.Inventory
	Active    ActiveCounter
	Resolver  Resolver
}

// Pipeline evaluates condition sets in the fixed Order.
type Pipeline struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Pipeline.
func New(opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{opts: opts, logger: logger}
}

// evaluation is the state of one Evaluate call.
type evaluation struct {
	p       player.Player
	questID string
	set     map[string]any

	cost    float64
	items   []ItemRequirement
	consume bool
}

// Evaluate checks set for p. With commit, the cost is withdrawn and required
// items are consumed once every condition has passed; without commit nothing
// is spent.
func (pl *Pipeline) Evaluate(p player.Player, questID string, set map[string]any, commit bool) Outcome {
	if len(set) == 0 {
		return Success()
	}
	ev := &evaluation{p: p, questID: questID, set: set}
	for name := range set {
		if !isKnown(name) {
			pl.warn(ev, name, "unknown condition ignored")
		}
	}
	for _, name := range Order {
		raw, present := set[name]
		if !present {
			continue
		}
		if out := pl.check(ev, name, raw); !out.OK() {
			return out
		}
	}
	if !commit {
		return Success()
	}
	return pl.spend(ev)
}

func (pl *Pipeline) check(ev *evaluation, name string, raw any) Outcome {
	p := ev.p
	switch name {
	case MinLevel:
		n, ok := toInt(raw)
		if !ok {
			pl.warn(ev, name, "expected an integer")
			return Success()
		}
		if p.Level() < n {
			return Failure(name, fmt.Sprintf("requires level %d", n))
		}

	case MaxLevel:
		n, ok := toInt(raw)
		if !ok {
			pl.warn(ev, name, "expected an integer")
			return Success()
		}
		if p.Level() > n {
			return Failure(name, fmt.Sprintf("only available up to level %d", n))
		}

	case Permission:
		nodes, ok := toStrings(raw)
		if !ok {
			pl.warn(ev, name, "expected a permission node or a list of nodes")
			return Success()
		}
		for _, node := range nodes {
			if !p.HasPermission(node) {
				return Failure(name, "you do not have permission for this quest")
			}
		}

	case Worlds:
		worlds, ok := toStrings(raw)
		if !ok {
			pl.warn(ev, name, "expected a list of world names")
			return Success()
		}
		if len(worlds) > 0 && !containsFold(worlds, p.WorldName()) {
			return Failure(name, "not available in this world")
		}

	case MaxActive:
		n, ok := toInt(raw)
		if !ok {
			pl.warn(ev, name, "expected an integer")
			return Success()
		}
		if pl.opts.Active == nil {
			return Success()
		}
		if pl.opts.Active.ActiveCount(p.ID()) >= n {
			return Failure(name, fmt.Sprintf("you already have %d active quests", n))
		}

	case MinBalance:
		n, ok := toFloat(raw)
		if !ok {
			pl.warn(ev, name, "expected a number")
			return Success()
		}
		if pl.opts.Economy == nil {
			return Success()
		}
		if pl.opts.Economy.Balance(p) < n {
			return Failure(name, fmt.Sprintf("requires a balance of at least %.2f", n))
		}

	case Cost:
		n, ok := toFloat(raw)
		if !ok || n < 0 {
			pl.warn(ev, name, "expected a non-negative number")
			return Success()
		}
		if pl.opts.Economy == nil || n == 0 {
			return Success()
		}
		if pl.opts.Economy.Balance(p) < n {
			return Failure(name, fmt.Sprintf("costs %.2f", n))
		}
		ev.cost = n

	case Items:
		entries, ok := toStrings(raw)
		if !ok {
			pl.warn(ev, name, "expected a list of MATERIAL:AMOUNT entries")
			return Success()
		}
		for _, e := range entries {
			req, err := ParseItem(e)
			if err != nil {
				pl.warn(ev, name, err.Error())
				continue
			}
			ev.items = append(ev.items, req)
		}
		if pl.opts.Inventory == nil {
			return Success()
		}
		for _, req := range ev.items {
			if pl.opts.Inventory.CountItem(p, req.Material) < req.Amount {
				return Failure(name, fmt.Sprintf("requires %d %s", req.Amount, strings.ToLower(req.Material)))
			}
		}

	case ConsumeItem:
		b, ok := toBool(raw)
		if !ok {
			pl.warn(ev, name, "expected true or false")
			return Success()
		}
		if b && len(ev.items) == 0 {
			pl.warn(ev, name, "nothing to consume without an items condition")
			return Success()
		}
		ev.consume = b && pl.opts.Inventory != nil

	case Time:
		s, ok := raw.(string)
		if !ok {
			pl.warn(ev, name, "expected day, night or any")
			return Success()
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "any", "":
		case "day":
			if p.TimeOfDay() != player.Day {
				return Failure(name, "only available during the day")
			}
		case "night":
			if p.TimeOfDay() != player.Night {
				return Failure(name, "only available at night")
			}
		default:
			pl.warn(ev, name, fmt.Sprintf("unknown time of day %q", s))
		}

	case Expression:
		return pl.checkExpression(ev, raw)

	case GameModes:
		modes, ok := toStrings(raw)
		if !ok {
			pl.warn(ev, name, "expected a list of game modes")
			return Success()
		}
		if len(modes) > 0 && !containsFold(modes, p.GameMode()) {
			return Failure(name, "not available in your game mode")
		}
	}
	return Success()
}

func (pl *Pipeline) checkExpression(ev *evaluation, raw any) Outcome {
	expr, ok := raw.(string)
	if !ok || strings.TrimSpace(expr) == "" {
		pl.warn(ev, Expression, "expected an expression string")
		return Success()
	}
	if pl.opts.Resolver == nil {
		return Success()
	}
	resolved := pl.opts.Resolver.Resolve(ev.p, expr)
	lhs, op, rhs, found := compare.Split(resolved)
	if !found {
		pl.warn(ev, Expression, fmt.Sprintf("no comparison operator in %q", resolved))
		return Success()
	}
	result, supported := compare.Values(lhs, op, rhs)
	if !supported {
		pl.warn(ev, Expression, fmt.Sprintf("operator %s needs numeric operands in %q", op, resolved))
		return Success()
	}
	if !result {
		return Failure(Expression, "requirements not met")
	}
	return Success()
}

// spend runs the consuming side of the pipeline.
func (pl *Pipeline) spend(ev *evaluation) Outcome {
	if ev.cost > 0 {
		if err := pl.opts.Economy.Withdraw(ev.p, ev.cost); err != nil {
			pl.logger.Warn("quest cost withdrawal failed",
				zap.String("quest_id", ev.questID),
				zap.String("player_id", ev.p.ID()),
				zap.Float64("cost", ev.cost),
				zap.Error(err))
			return Failure(Cost, "payment failed")
		}
	}
	if ev.consume {
		for _, req := range ev.items {
			pl.opts.Inventory.RemoveItems(ev.p, req.Material, req.Amount)
		}
	}
	return Success()
}

func (pl *Pipeline) warn(ev *evaluation, condition, msg string) {
	pl.logger.Warn("quest condition skipped",
		zap.String("quest_id", ev.questID),
		zap.String("condition", condition),
		zap.Any("value", ev.set[condition]),
		zap.String("reason", msg))
}

func isKnown(name string) bool {
	for _, n := range Order {
		if n == name {
			return true
		}
	}
	return false
}
