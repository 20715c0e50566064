// Package hook is the extension point for quest lifecycle events. Plugins
// register handlers by event name; the quest service triggers them.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// ErrInterrupt signals that a handler wants to stop further processing. For
// Before* events it also vetoes the action.
var ErrInterrupt = errors.New("hook interrupted")

// Quest lifecycle events.
const (
	OnQuestIssued       = "on_quest_issued"
	OnObjectiveProgress = "on_objective_progress"
	OnQuestMilestone    = "on_quest_milestone"
	OnQuestComplete     = "on_quest_complete"
	BeforeQuestRedeem   = "before_quest_redeem"
	OnQuestRedeemed     = "on_quest_redeemed"
)

// HookFn is a handler. It returns the (possibly replaced) data to pass to the
// next handler. Returning ErrInterrupt stops the chain; any other error is
// collected and the chain continues.
type HookFn func(ctx context.Context, event string, data any) (any, error)

type hookEntry struct {
	priority int
	seq      int
	name     string
	fn       HookFn
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu    sync.RWMutex
	seq   int
	hooks map[string][]*hookEntry
}

// NewHookCenter creates an empty HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// Register adds fn for event. Lower priority runs first; equal priorities run
// in registration order. name identifies the owner for Unregister.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.seq++
	entries := append(hc.hooks[event], &hookEntry{priority: priority, seq: hc.seq, name: name, fn: fn})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	hc.hooks[event] = entries
}

// Unregister removes the hooks registered under name for event.
func (hc *HookCenter) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.removeLocked(event, name)
}

// UnregisterAll removes every hook registered under name.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event := range hc.hooks {
		hc.removeLocked(event, name)
	}
}

func (hc *HookCenter) removeLocked(event, name string) {
	kept := hc.hooks[event][:0]
	for _, e := range hc.hooks[event] {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(hc.hooks, event)
		return
	}
	hc.hooks[event] = kept
}

// Has reports whether any handler is registered for event.
func (hc *HookCenter) Has(event string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.hooks[event]) > 0
}

// Names returns the handler names for event in execution order.
func (hc *HookCenter) Names(event string) []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.hooks[event]))
	for _, e := range hc.hooks[event] {
		names = append(names, e.name)
	}
	return names
}

// Trigger runs the handlers for event in order, threading data through them.
// It returns ErrInterrupt (possibly wrapped) when a handler stopped the
// chain, otherwise the combined errors of handlers that failed.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data any) (any, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	var errs error
	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		data = out
	}
	return data, errs
}
