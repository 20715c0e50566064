package quest

// Event is the payload of quest lifecycle hooks and of the progress messages
// published on the progress channel.
type Event struct {
	Type       string         `json:"type"`
	InstanceID string         `json:"instance_id"`
	QuestID    string         `json:"quest_id"`
	PlayerID   string         `json:"player_id"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Advanced   map[string]int `json:"advanced,omitempty"`
	Percent    int            `json:"percent"`
	Milestone  int            `json:"milestone,omitempty"`
	Complete   bool           `json:"complete"`
}

// Event types.
const (
	EventIssued    = "issued"
	EventProgress  = "progress"
	EventMilestone = "milestone"
	EventComplete  = "complete"
	EventRedeemed  = "redeemed"
)

// View is a read-only summary of an instance.
type View struct {
	State
	DisplayName string   `json:"display_name"`
	Percent     int      `json:"percent"`
	Complete    bool     `json:"complete"`
	Active      []string `json:"active_objectives"`
}

func newView(inst *Instance, t *Template) View {
	v := View{State: inst.Snapshot()}
	if t == nil {
		return v
	}
	v.DisplayName = t.DisplayName
	v.Percent = inst.Percent(t)
	v.Complete = inst.IsComplete(t)
	for _, o := range inst.ActiveObjectives(t) {
		v.Active = append(v.Active, o.ID)
	}
	return v
}

// crossed returns the milestones in (from, to].
func crossed(milestones []int, from, to int) []int {
	var out []int
	for _, m := range milestones {
		if m > from && m <= to {
			out = append(out, m)
		}
	}
	return out
}
