package models

// PlayerView is a player as seen by one viewer.
type PlayerView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          Role     `json:"role"`
	IsAlive       bool     `json:"is_alive"`
	CanVote       bool     `json:"can_vote"`
	VotesReceived []string `json:"votes_received"`
	IsHost        bool     `json:"is_host"`
}

// GameView omits night submissions; only whether the mafia has acted is public.
type GameView struct {
	Round          int           `json:"round"`
	MafiaHasActed  bool          `json:"mafia_has_acted"`
	DayActions     []Vote        `json:"day_actions"`
	Eliminations   []Elimination `json:"eliminations"`
	LastEliminated string        `json:"last_eliminated,omitempty"`
}

// RoomView 房间快照，供客户端渲染
type RoomView struct {
	ID       string       `json:"id"`
	Code     string       `json:"code"`
	HostID   string       `json:"host_id"`
	Phase    Phase        `json:"phase"`
	Winner   Winner       `json:"winner"`
	Players  []PlayerView `json:"players"`
	Game     *GameView    `json:"game,omitempty"`
	ViewerID string       `json:"viewer_id,omitempty"`
	Version  int64        `json:"version"`
}

// RoomSummary is the lobby listing entry.
type RoomSummary struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	HostName    string `json:"host_name"`
	Phase       Phase  `json:"phase"`
	PlayerCount int    `json:"player_count"`
}

// View renders the room for viewerID. Roles of other players stay hidden
// until the game is over; an empty viewerID yields the public view.
func (r *Room) View(viewerID string) *RoomView {
	v := &RoomView{
		ID:       r.ID,
		Code:     r.Code,
		HostID:   r.HostID,
		Phase:    r.Phase,
		Winner:   r.Winner,
		Players:  make([]PlayerView, 0, len(r.Players)),
		ViewerID: viewerID,
		Version:  r.Version,
	}
	reveal := r.Phase == PhaseGameOver
	for _, p := range r.Players {
		role := RoleNone
		if reveal || (viewerID != "" && p.ID == viewerID) {
			role = p.Role
		}
		v.Players = append(v.Players, PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			Role:          role,
			IsAlive:       p.IsAlive,
			CanVote:       p.CanVote,
			VotesReceived: append([]string{}, p.VotesReceived...),
			IsHost:        p.ID == r.HostID,
		})
	}
	if r.Game != nil {
		gv := &GameView{
			Round:         r.Game.Round,
			MafiaHasActed: r.Game.NightActions.MafiaTarget != "",
			DayActions:    append([]Vote{}, r.Game.DayActions...),
			Eliminations:  append([]Elimination{}, r.Game.Eliminations...),
		}
		if n := len(r.Game.Eliminations); n > 0 {
			gv.LastEliminated = r.Game.Eliminations[n-1].PlayerID
		}
		v.Game = gv
	}
	return v
}

// Summary returns the listing entry for the room.
func (r *Room) Summary() RoomSummary {
	s := RoomSummary{
		ID:          r.ID,
		Code:        r.Code,
		Phase:       r.Phase,
		PlayerCount: len(r.Players),
	}
	if host, ok := r.Player(r.HostID); ok {
		s.HostName = host.Name
	}
	return s
}
