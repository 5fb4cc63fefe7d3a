// models/models.go
package models

import (
	"time"
)

// Role 玩家身份
type Role string

const (
	RoleNone     Role = "none"
	RoleMafia    Role = "mafia"
	RolePolice   Role = "police"
	RoleCivilian Role = "civilian"
)

// Phase 房间阶段
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseNight    Phase = "night"
	PhaseDay      Phase = "day"
	PhaseGameOver Phase = "gameOver"
)

// Winner is the faction tag of the winning side.
type Winner string

const (
	WinnerNone     Winner = "none"
	WinnerMafia    Winner = "mafia"
	WinnerCitizens Winner = "citizens"
	WinnerPolice   Winner = "police"
)

// Player 玩家，归属于唯一的房间
type Player struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          Role     `json:"role"`
	IsAlive       bool     `json:"is_alive"`
	CanVote       bool     `json:"can_vote"`
	VotesReceived []string `json:"votes_received"` // voter ids
}

// NightActions holds the current round's night submissions; "" means absent.
type NightActions struct {
	MafiaTarget string `json:"mafia_target,omitempty"`
	PoliceGuess string `json:"police_guess,omitempty"`
}

// Vote 白天的一次提名 (voter -> target)
type Vote struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
}

// Elimination records one death.
type Elimination struct {
	PlayerID string `json:"player_id"`
	Phase    Phase  `json:"phase"`
	Round    int    `json:"round"`
}

// Game 对局数据，游戏开始时创建
type Game struct {
	Phase        Phase         `json:"phase"`
	Round        int           `json:"round"`
	NightActions NightActions  `json:"night_actions"`
	DayActions   []Vote        `json:"day_actions"`
	Eliminations []Elimination `json:"eliminations"`
	StartedAt    time.Time     `json:"started_at"`
}

// Room 房间聚合根
type Room struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	HostID    string    `json:"host_id"`
	Players   []*Player `json:"players"`
	Phase     Phase     `json:"phase"`
	Winner    Winner    `json:"winner"`
	Game      *Game     `json:"game,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRoom creates a waiting room whose only player is the host.
func NewRoom(id, code, hostID, hostName string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Code:      code,
		HostID:    hostID,
		Players:   []*Player{NewPlayer(hostID, hostName)},
		Phase:     PhaseWaiting,
		Winner:    WinnerNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewPlayer returns a living player with no role.
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:            id,
		Name:          name,
		Role:          RoleNone,
		IsAlive:       true,
		CanVote:       true,
		VotesReceived: []string{},
	}
}

// Player looks a player up by id.
func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// RemovePlayer drops a player, preserving the order of the others.
func (r *Room) RemovePlayer(id string) bool {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// Living returns the living players in join order.
func (r *Room) Living() []*Player {
	alive := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}
	return alive
}

// LivingWithRole returns the living players holding role.
func (r *Room) LivingWithRole(role Role) []*Player {
	var out []*Player
	for _, p := range r.Players {
		if p.IsAlive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// IsHost reports whether id is the room's host.
func (r *Room) IsHost(id string) bool {
	return id != "" && id == r.HostID
}

// Clone deep-copies the room so a mutation can be applied and discarded.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		cp.VotesReceived = append([]string{}, p.VotesReceived...)
		c.Players[i] = &cp
	}
	if r.Game != nil {
		g := *r.Game
		g.DayActions = append([]Vote(nil), r.Game.DayActions...)
		g.Eliminations = append([]Elimination(nil), r.Game.Eliminations...)
		c.Game = &g
	}
	return &c
}
