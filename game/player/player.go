// Package player declares the view of an online player that the quest core
// reads, and the collaborators it calls to spend a player's resources.
package player

// TimeOfDay is the coarse time of the player's current world.
type TimeOfDay int

const (
	Day TimeOfDay = iota
	Night
)

func (t TimeOfDay) String() string {
	if t == Night {
		return "night"
	}
	return "day"
}

// Player is a read-only view of one online player.
type Player interface {
	ID() string
	Name() string
	Level() int
	WorldName() string
	TimeOfDay() TimeOfDay
	GameMode() string
	HasPermission(node string) bool
}

// Economy holds player balances. A nil Economy disables money conditions.
type Economy interface {
	Balance(p Player) float64
	Withdraw(p Player, amount float64) error
}

// Inventory counts and removes items carried by a player.
type Inventory interface {
	CountItem(p Player, material string) int
	RemoveItems(p Player, material string, amount int)
}

// Snapshot is a plain Player implementation, used where the caller already
// has every field at hand (scripts, tests, API payloads).
type Snapshot struct {
	PlayerID    string
	PlayerName  string
	PlayerLevel int
	World       string
	Time        TimeOfDay
	Mode        string
	Permissions map[string]bool
}

func (s *Snapshot) ID() string { return s.PlayerID }
func (s *Snapshot) Name() string { return s.PlayerName }
func (s *Snapshot) Level() int { return s.PlayerLevel }
func (s *Snapshot) WorldName() string { return s.World }
func (s *Snapshot) TimeOfDay() TimeOfDay { return s.Time }
func (s *Snapshot) GameMode() string { return s.Mode }
func (s *Snapshot) HasPermission(node string) bool {
	return s.Permissions[node]
}
