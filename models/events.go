package models

// EventType 房间广播事件类型
type EventType string

const (
	EventStateUpdated       EventType = "stateUpdated"
	EventPlayerKilled       EventType = "playerKilled"
	EventPoliceWinAnnounced EventType = "policeWinAnnounced"
	EventGameEnded          EventType = "gameEnded"
	EventGameStarted        EventType = "gameStarted"
	EventPlayerJoined       EventType = "playerJoined"
	EventPlayerExited       EventType = "playerExited"
)

// Event is published to every subscriber of RoomID after a mutation commits.
type Event struct {
	Type     EventType `json:"type"`
	RoomID   string    `json:"room_id"`
	PlayerID string    `json:"player_id,omitempty"`
	TargetID string    `json:"target_id,omitempty"` // policeWinAnnounced: the identified mafia
	Phase    Phase     `json:"phase,omitempty"`
	Room     *RoomView `json:"room,omitempty"`
}
