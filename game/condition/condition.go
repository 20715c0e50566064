// Package condition evaluates the eligibility conditions attached to a quest
// template, and spends the resources the consuming conditions ask for.
package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition names, listed in evaluation order.
const (
	MinLevel    = "min-level"
	MaxLevel    = "max-level"
	Permission  = "permission"
	Worlds      = "worlds"
	MaxActive   = "max-active"
	MinBalance  = "min-balance"
	Cost        = "cost"
	Items       = "items"
	ConsumeItem = "consume-item"
	Time        = "time"
	Expression  = "expression"
	GameModes   = "gamemodes"
)

// Order is the fixed evaluation order. Consuming conditions come after the
// gates that decide whether they may be charged.
var Order = []string{
	MinLevel, MaxLevel, Permission, Worlds, MaxActive, MinBalance,
	Cost, Items, ConsumeItem, Time, Expression, GameModes,
}

// Outcome is the result of an evaluation. Reason is meant for the player.
type Outcome struct {
	Passed    bool
	Condition string
	Reason    string
}

// Success is the passing Outcome.
func Success() Outcome { return Outcome{Passed: true} }

// Failure builds a failing Outcome for the named condition.
func Failure(condition, reason string) Outcome {
	return Outcome{Condition: condition, Reason: reason}
}

// OK reports whether the outcome passed.
func (o Outcome) OK() bool { return o.Passed }

func (o Outcome) String() string {
	if o.Passed {
		return "success"
	}
	return fmt.Sprintf("failure(%s): %s", o.Condition, o.Reason)
}

// ItemRequirement is one parsed entry of the items condition.
type ItemRequirement struct {
	Material string
	Amount   int
}

// ParseItem parses MATERIAL or MATERIAL:AMOUNT.
func ParseItem(s string) (ItemRequirement, error) {
	s = strings.TrimSpace(s)
	material, amountStr, hasAmount := strings.Cut(s, ":")
	material = strings.TrimSpace(material)
	if material == "" {
		return ItemRequirement{}, fmt.Errorf("item requirement %q has no material", s)
	}
	req := ItemRequirement{Material: strings.ToUpper(material), Amount: 1}
	if hasAmount {
		n, err := strconv.Atoi(strings.TrimSpace(amountStr))
		if err != nil || n <= 0 {
			return ItemRequirement{}, fmt.Errorf("item requirement %q has an invalid amount", s)
		}
		req.Amount = n
	}
	return req, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}

// toStrings accepts a list or a comma-separated string.
func toStrings(v any) ([]string, bool) {
	var raw []string
	switch l := v.(type) {
	case string:
		raw = strings.Split(l, ",")
	case []string:
		raw = l
	case []any:
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			raw = append(raw, s)
		}
	default:
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}

func containsFold(list []string, s string) bool {
	for _, e := range list {
		if strings.EqualFold(e, s) {
			return true
		}
	}
	return false
}
