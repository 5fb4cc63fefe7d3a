// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wfunc/mafiaserver/logger"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/network"
	"github.com/wfunc/mafiaserver/session"
)

// 事件类型 -> 消息ID
var eventMsgIDs = map[models.EventType]uint16{
	models.EventStateUpdated:       network.MsgTypeStateUpdated,
	models.EventPlayerKilled:       network.MsgTypePlayerKilled,
	models.EventPoliceWinAnnounced: network.MsgTypePoliceWinAnnounced,
	models.EventGameEnded:          network.MsgTypeGameEnded,
	models.EventGameStarted:        network.MsgTypeGameStarted,
	models.EventPlayerJoined:       network.MsgTypePlayerJoined,
	models.EventPlayerExited:       network.MsgTypePlayerExited,
}

func msgID(t models.EventType) (uint16, bool) {
	id, ok := eventMsgIDs[t]
	return id, ok
}

// DropCounter is told about every packet a full subscriber queue refused.
type DropCounter interface {
	IncBroadcastsDropped()
}

// 基于房间的广播器
type RoomBroadcaster struct {
	sessionManager *session.Manager
	drops          DropCounter
}

func NewRoomBroadcaster(sessionManager *session.Manager, drops DropCounter) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
		drops:          drops,
	}
}

// Publish fans events out to every session subscribed to room. stateUpdated
// is rendered per subscriber so each player sees only their own role.
// Sends never block: a full queue drops the packet for that subscriber only.
func (b *RoomBroadcaster) Publish(room *models.Room, events []models.Event) {
	sessions := b.sessionManager.GetByRoom(room.ID)
	if len(sessions) == 0 {
		return
	}

	for _, ev := range events {
		id, ok := msgID(ev.Type)
		if !ok {
			logger.Log.Warnf("[Publish] unknown event type %q for room %s", ev.Type, room.Code)
			continue
		}

		if ev.Type == models.EventStateUpdated {
			for _, s := range sessions {
				personal := ev
				personal.Room = room.View(s.PlayerID)
				b.send(s, id, personal)
			}
			continue
		}

		data, err := json.Marshal(ev)
		if err != nil {
			logger.Log.Errorf("[Publish] encode %s for room %s: %v", ev.Type, room.Code, err)
			continue
		}
		for _, s := range sessions {
			b.sendRaw(s, id, data)
		}
	}

	for _, ev := range events {
		if ev.Type == models.EventGameEnded {
			b.detach(room.ID)
			break
		}
	}
}

func (b *RoomBroadcaster) send(s *session.Session, id uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("[Publish] encode msg %d for session %s: %v", id, s.ID, err)
		return
	}
	b.sendRaw(s, id, data)
}

func (b *RoomBroadcaster) sendRaw(s *session.Session, id uint16, data []byte) {
	switch err := s.Send(id, data); err {
	case nil:
	case session.ErrSendQueueFull:
		logger.Log.Warnf("[Publish] dropped msg %d for slow session %s", id, s.ID)
		if b.drops != nil {
			b.drops.IncBroadcastsDropped()
		}
	default:
		// 连接已关闭，等待读协程清理
		logger.Log.Debugf("[Publish] session %s: %v", s.ID, err)
	}
}

// detach unsubscribes and closes the sessions of a room that no longer
// exists, after their queued packets are written.
func (b *RoomBroadcaster) detach(roomID string) {
	for _, s := range b.sessionManager.GetByRoom(roomID) {
		b.sessionManager.Remove(s.ID)
		s.CloseAfterFlush()
	}
}
