package script

import (
	"testing"
	"time"

	"github.com/kasuganosora/questtoken/game/player"
	"github.com/stretchr/testify/assert"
)

func alex() *player.Snapshot {
	return &player.Snapshot{
		PlayerID:    "p1",
		PlayerName:  "Alex",
		PlayerLevel: 17,
		World:       "world_nether",
		Time:        player.Night,
		Mode:        "survival",
	}
}

func TestResolver_PlayerFields(t *testing.T) {
	r := NewResolver(2, 200*time.Millisecond, nop())
	p := alex()

	assert.Equal(t, "17 >= 10", r.Resolve(p, "%player.level% >= 10"))
	assert.Equal(t, "Alex in world_nether", r.Resolve(p, "%player.name% in %player.world%"))
	assert.Equal(t, "night", r.Resolve(p, "%player.time%"))
	assert.Equal(t, "true", r.Resolve(p, "%player.gamemode == 'survival'%"))
	assert.Equal(t, "8.5", r.Resolve(p, "%player.level / 2%"))
}

func TestResolver_RegisteredValues(t *testing.T) {
	r := NewResolver(1, 200*time.Millisecond, nop())
	r.Register("kills", func(p player.Player) any { return 15 })
	r.Register("player", func(p player.Player) any { return "shadowed" })

	p := alex()
	assert.Equal(t, "15 >= 10", r.Resolve(p, "%kills% >= 10"))
	assert.Equal(t, "p1", r.Resolve(p, "%player.id%"))
}

func TestResolver_FailureLeavesTokenUnchanged(t *testing.T) {
	r := NewResolver(1, 200*time.Millisecond, nop())
	p := alex()

	assert.Equal(t, "%unknown% > 3", r.Resolve(p, "%unknown% > 3"))
	assert.Equal(t, "no placeholders", r.Resolve(p, "no placeholders"))
	assert.Equal(t, "50% off", r.Resolve(p, "50% off"))
}
