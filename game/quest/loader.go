package quest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kasuganosora/questtoken/game/compare"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ObjectiveYAML is one objective entry in a templates file.
type ObjectiveYAML struct {
	ID          string  `yaml:"id"`
	Type        string  `yaml:"type"`
	Amount      int     `yaml:"amount"`
	Material    string  `yaml:"material"`
	Entity      string  `yaml:"entity"` // any | hostile | passive | <entity type>
	Command     string  `yaml:"command"`
	Placeholder string  `yaml:"placeholder"`
	Operator    string  `yaml:"operator"`
	Threshold   float64 `yaml:"threshold"`
	Label       string  `yaml:"label"`
}

// TemplateYAML is one quest definition in a templates file.
type TemplateYAML struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Material     string          `yaml:"material"`
	Goal         *ObjectiveYAML  `yaml:"goal"`
	Objectives   []ObjectiveYAML `yaml:"objectives"`
	Sequential   bool            `yaml:"sequential"`
	LockToPlayer bool            `yaml:"lock_to_player"`
	Permission   string          `yaml:"permission"`
	Tier         string          `yaml:"tier"`
	Difficulty   string          `yaml:"difficulty"`
	Milestones   []int           `yaml:"milestones"`
	Conditions   map[string]any  `yaml:"conditions"`
}

// TemplatesFile is the top-level structure of a templates file.
type TemplatesFile struct {
	Quests map[string]TemplateYAML `yaml:"quests"`
}

// LoadTemplatesFile reads and converts every quest in path. Templates are
// returned sorted by id; conversion problems are reported together.
func LoadTemplatesFile(path string) ([]*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quest: read templates file: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates converts YAML (or JSON) template definitions.
func ParseTemplates(data []byte) ([]*Template, error) {
	var file TemplatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("quest: parse templates: %w", err)
	}

	ids := make([]string, 0, len(file.Quests))
	for id := range file.Quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs error
	out := make([]*Template, 0, len(ids))
	for _, id := range ids {
		def := file.Quests[id]
		t, err := def.toTemplate(id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, t)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func (def *TemplateYAML) toTemplate(id string) (*Template, error) {
	t := &Template{
		ID:           id,
		DisplayName:  def.Name,
		Description:  def.Description,
		Material:     def.Material,
		Sequential:   def.Sequential,
		LockToPlayer: def.LockToPlayer,
		Permission:   def.Permission,
		Tier:         def.Tier,
		Difficulty:   def.Difficulty,
		Milestones:   def.Milestones,
		Conditions:   def.Conditions,
	}
	if t.DisplayName == "" {
		t.DisplayName = id
	}

	var errs error
	if def.Goal != nil {
		goal, err := def.Goal.toObjective()
		errs = multierr.Append(errs, err)
		t.Goal = goal
	}
	for _, od := range def.Objectives {
		o, err := od.toObjective()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		t.Objectives = append(t.Objectives, o)
	}
	if errs != nil {
		return nil, fmt.Errorf("quest %q: %w", id, errs)
	}
	return t, nil
}

func (od *ObjectiveYAML) toObjective() (Objective, error) {
	kind := ObjectiveKind(strings.ToLower(od.Type))
	if _, ok := kindAction[kind]; !ok {
		return Objective{}, fmt.Errorf("objective %q: unknown type %q", od.ID, od.Type)
	}
	o := Objective{
		ID:             od.ID,
		Kind:           kind,
		RequiredAmount: od.Amount,
		Material:       strings.ToUpper(od.Material),
		Entity:         parseEntityFilter(od.Entity),
		Command:        od.Command,
		Placeholder:    od.Placeholder,
		Threshold:      od.Threshold,
		Label:          od.Label,
	}
	if od.Operator != "" {
		op, ok := compare.ParseOperator(od.Operator)
		if !ok {
			return Objective{}, fmt.Errorf("objective %q: unknown operator %q", od.ID, od.Operator)
		}
		o.Operator = op
	}
	// placeholder objectives are satisfied by a single successful poll
	if kind == KindPlaceholder && o.RequiredAmount == 0 {
		o.RequiredAmount = 1
	}
	return o, nil
}

func parseEntityFilter(s string) EntityFilter {
	switch k := FilterKind(strings.ToLower(s)); k {
	case "", FilterAny:
		return EntityFilter{Kind: FilterAny}
	case FilterHostile, FilterPassive:
		return EntityFilter{Kind: k}
	}
	return EntityFilter{Kind: FilterSpecific, Type: strings.ToUpper(s)}
}
