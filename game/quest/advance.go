package quest

// Result describes what one action did to one instance.
type Result struct {
	// Advanced maps objective id to units applied; the legacy goal uses "".
	Advanced    map[string]int
	Bound       bool
	CursorMoved int
}

// Changed reports whether the instance was mutated.
func (r Result) Changed() bool {
	return len(r.Advanced) > 0 || r.Bound || r.CursorMoved > 0
}

// Advance applies one action performed by playerID to inst.
//
// Completion is not evaluated here; callers query IsComplete separately.
func Advance(playerID string, ctx ActionContext, inst *Instance, t *Template) Result {
	inst.mustTemplate(t)
	res := Result{}
	if inst.Redeemed() {
		return res
	}
	if t.LockToPlayer && inst.IsBound() && !inst.IsOwnedBy(playerID) {
		return res
	}

	if !t.HasObjectives() {
		if !t.Goal.Matches(ctx) {
			return res
		}
		if n := inst.AdvanceLegacy(ctx.Amount()); n > 0 {
			res.Advanced = map[string]int{"": n}
			res.Bound = inst.Bind(playerID)
		}
		return res
	}

	if t.Sequential {
		// Catch up a cursor left behind an already-capped objective.
		res.CursorMoved += syncCursor(inst, t)
	}

	for _, o := range inst.ActiveObjectives(t) {
		if !o.Matches(ctx) {
			continue
		}
		n := inst.AdvanceObjective(t, o.ID, ctx.Amount())
		if n == 0 {
			continue
		}
		if res.Advanced == nil {
			res.Advanced = make(map[string]int)
		}
		res.Advanced[o.ID] = n
		if inst.Bind(playerID) {
			res.Bound = true
		}
		if t.Sequential && inst.Counter(o.ID) >= o.RequiredAmount {
			if inst.AdvanceSequentialCursor(t) {
				res.CursorMoved++
			}
		}
	}
	return res
}

func syncCursor(inst *Instance, t *Template) int {
	moved := 0
	for inst.Cursor() < len(t.Objectives) {
		o := &t.Objectives[inst.Cursor()]
		if inst.Counter(o.ID) < o.RequiredAmount || !inst.AdvanceSequentialCursor(t) {
			break
		}
		moved++
	}
	return moved
}
