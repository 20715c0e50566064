package quest

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/questtoken/game/player"
	"go.uber.org/multierr"
)

// Template is the immutable definition of a quest, shared by every token
// issued from it.
//
// A template is either legacy (no Objectives; progress is tracked against
// Goal.RequiredAmount) or multi-objective. HasObjectives tells them apart.
type Template struct {
	ID          string
	DisplayName string
	Description string
	Material    string

	Goal       Objective
	Objectives []Objective

	Sequential   bool
	LockToPlayer bool
	Permission   string
	Tier         string
	Difficulty   string
	// Milestones are ascending completion percentages in (0, 100].
	Milestones []int
	// Conditions maps a condition name to its raw configured value.
	Conditions map[string]any
}

// HasObjectives reports whether the template uses the objective list rather
// than the legacy single goal.
func (t *Template) HasObjectives() bool {
	return len(t.Objectives) > 0
}

// AccessAllowed reports whether p may use the template at all.
func (t *Template) AccessAllowed(p player.Player) bool {
	return t.Permission == "" || p.HasPermission(t.Permission)
}

// Objective returns the objective with the given id.
func (t *Template) Objective(id string) (*Objective, bool) {
	for i := range t.Objectives {
		if t.Objectives[i].ID == id {
			return &t.Objectives[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of the template and reports
// every problem found.
func (t *Template) Validate() error {
	var err error
	if t.ID == "" {
		err = multierr.Append(err, errors.New("quest id is empty"))
	}
	if t.Sequential && !t.HasObjectives() {
		err = multierr.Append(err, fmt.Errorf("quest %q: sequential quest has no objectives", t.ID))
	}
	if t.HasObjectives() {
		seen := make(map[string]bool, len(t.Objectives))
		for i, o := range t.Objectives {
			if o.ID == "" {
				err = multierr.Append(err, fmt.Errorf("quest %q: objective #%d has no id", t.ID, i))
			} else if seen[o.ID] {
				err = multierr.Append(err, fmt.Errorf("quest %q: duplicate objective id %q", t.ID, o.ID))
			}
			seen[o.ID] = true
			if o.RequiredAmount <= 0 {
				err = multierr.Append(err, fmt.Errorf("quest %q: objective %q needs a positive amount", t.ID, o.ID))
			}
		}
	} else if t.Goal.RequiredAmount <= 0 {
		err = multierr.Append(err, fmt.Errorf("quest %q: legacy goal needs a positive amount", t.ID))
	}
	prev := 0
	for _, m := range t.Milestones {
		if m <= prev || m > 100 {
			err = multierr.Append(err, fmt.Errorf("quest %q: milestone %d out of order or range", t.ID, m))
		}
		prev = m
	}
	return err
}
