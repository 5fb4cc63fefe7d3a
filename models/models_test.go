package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/mafiaserver/models"
)

func newRoom() *models.Room {
	r := models.NewRoom("r1", "ABCDEF", "a", "Alice", time.Unix(0, 0))
	for _, id := range []string{"b", "c", "d"} {
		r.Players = append(r.Players, models.NewPlayer(id, "player-"+id))
	}
	return r
}

func TestNewRoom(t *testing.T) {
	r := newRoom()
	assert.Equal(t, models.PhaseWaiting, r.Phase)
	assert.Equal(t, models.WinnerNone, r.Winner)
	assert.Nil(t, r.Game)
	require.Len(t, r.Players, 4)
	assert.True(t, r.IsHost("a"))
	assert.False(t, r.IsHost(""))
	assert.Equal(t, models.RoleNone, r.Players[0].Role)
}

func TestRoom_CloneIsIndependent(t *testing.T) {
	r := newRoom()
	r.Game = &models.Game{Phase: models.PhaseDay, DayActions: []models.Vote{{Voter: "a", Target: "b"}}}
	r.Players[1].VotesReceived = []string{"a"}

	c := r.Clone()
	c.Players[1].IsAlive = false
	c.Players[1].VotesReceived = append(c.Players[1].VotesReceived, "c")
	c.Game.DayActions[0].Target = "c"
	c.Game.NightActions.MafiaTarget = "d"

	assert.True(t, r.Players[1].IsAlive)
	assert.Equal(t, []string{"a"}, r.Players[1].VotesReceived)
	assert.Equal(t, "b", r.Game.DayActions[0].Target)
	assert.Empty(t, r.Game.NightActions.MafiaTarget)
}

func TestRoom_RemovePlayerKeepsOrder(t *testing.T) {
	r := newRoom()
	require.True(t, r.RemovePlayer("b"))
	require.False(t, r.RemovePlayer("b"))

	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
}

func TestRoom_ViewHidesRolesUntilGameOver(t *testing.T) {
	r := newRoom()
	r.Players[0].Role = models.RoleMafia
	r.Players[1].Role = models.RolePolice
	r.Phase = models.PhaseNight
	r.Game = &models.Game{Phase: models.PhaseNight, NightActions: models.NightActions{MafiaTarget: "c"}}

	v := r.View("b")
	assert.Equal(t, models.RoleNone, v.Players[0].Role)
	assert.Equal(t, models.RolePolice, v.Players[1].Role)
	assert.True(t, v.Game.MafiaHasActed)

	public := r.View("")
	for _, p := range public.Players {
		assert.Equal(t, models.RoleNone, p.Role)
	}

	r.Phase = models.PhaseGameOver
	assert.Equal(t, models.RoleMafia, r.View("").Players[0].Role)
}

func TestRoom_Summary(t *testing.T) {
	s := newRoom().Summary()
	assert.Equal(t, "Alice", s.HostName)
	assert.Equal(t, 4, s.PlayerCount)
	assert.Equal(t, "ABCDEF", s.Code)
}
