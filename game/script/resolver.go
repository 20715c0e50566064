package script

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/kasuganosora/questtoken/game/player"
	"go.uber.org/zap"
)

var placeholderRE = regexp.MustCompile(`%([^%\s][^%]*)%`)

// Value computes a named global for a player at evaluation time.
type Value func(p player.Player) any

// Resolver replaces each %...% token in a string with the result of
// evaluating its inner text as JavaScript. A "player" object and any
// registered values are in scope. Tokens that fail to evaluate are left
// as they are.
type Resolver struct {
	pool   *VMPool
	logger *zap.Logger

	mu     sync.RWMutex
	values map[string]Value
}

// NewResolver creates a Resolver backed by a VMPool of the given size.
func NewResolver(size int, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		pool:   NewVMPool(size, timeout, logger),
		logger: logger,
		values: make(map[string]Value),
	}
}

// Register exposes fn as the global name. Registering "player" is ignored.
func (r *Resolver) Register(name string, fn Value) {
	if name == "player" || fn == nil {
		return
	}
	r.mu.Lock()
	r.values[name] = fn
	r.mu.Unlock()
}

// Resolve implements condition.Resolver.
func (r *Resolver) Resolve(p player.Player, raw string) string {
	if !placeholderRE.MatchString(raw) {
		return raw
	}
	env := r.env(p)
	return placeholderRE.ReplaceAllStringFunc(raw, func(tok string) string {
		src := tok[1 : len(tok)-1]
		v, err := r.pool.Run(context.Background(), src, env)
		if err != nil {
			r.logger.Warn("placeholder evaluation failed",
				zap.String("placeholder", tok),
				zap.String("player", p.ID()),
				zap.Error(err))
			return tok
		}
		return format(v)
	})
}

func (r *Resolver) env(p player.Player) Env {
	env := Env{"player": playerObject(p)}
	r.mu.RLock()
	for name, fn := range r.values {
		env[name] = fn(p)
	}
	r.mu.RUnlock()
	return env
}

func playerObject(p player.Player) map[string]any {
	return map[string]any{
		"id":       p.ID(),
		"name":     p.Name(),
		"level":    p.Level(),
		"world":    p.WorldName(),
		"time":     p.TimeOfDay().String(),
		"gamemode": p.GameMode(),
	}
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
