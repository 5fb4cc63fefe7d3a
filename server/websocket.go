package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/logger"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/network"
	"github.com/wfunc/mafiaserver/session"
	"github.com/wfunc/mafiaserver/state"
)

// handleWebSocket subscribes a player of an existing room to its events.
// The player must already be in the room (joined over HTTP).
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	playerID := r.URL.Query().Get("player")

	room, err := s.game.GetRoom(roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, ok := room.Player(playerID); !ok {
		writeError(w, errs.New(errs.ErrPlayerNotFound, "player %q is not in room %s", playerID, room.Code))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, room, playerID)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, room *models.Room, playerID string) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeat)

	sess := session.NewSession(uuid.New().String(), wsConn, session.DefaultQueueSize)
	sess.RoomID = room.ID
	sess.PlayerID = playerID

	// 注册和首次推送在房间读锁内完成，之后的每次提交都会送达
	err := s.game.Subscribe(room.ID, func() {
		s.sessionManager.Add(sess)
	}, func(current *models.Room) {
		s.sendEvent(sess, network.MsgTypeStateUpdated, models.Event{
			Type:   models.EventStateUpdated,
			RoomID: current.ID,
			Phase:  current.Phase,
			Room:   current.View(playerID),
		})
	})
	if err != nil {
		logger.Log.Infow("subscribe failed", "room", room.Code, "player", playerID, "error", err)
		s.sessionManager.Remove(sess.GetID())
		sess.Close()
		return
	}
	s.online.IncOnlinePlayers()

	logger.Log.Infow("session subscribed", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID(),
		"room", room.Code, "player", playerID)

	defer func() {
		logger.Log.Infow("session closed", "session", sess.GetID(), "room", room.Code)
		s.sessionManager.Remove(sess.GetID())
		s.online.DecOnlinePlayers()
		sess.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		case <-sess.Done():
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	ctx := context.Background()

	var req network.ActionRequest
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			s.replyError(sess, errs.New(errs.ErrInvalidInput, "malformed packet %d: %v", packet.MsgID, err))
			return
		}
	}

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeStartGame:
		_, err = s.game.StartGame(ctx, sess.RoomID, sess.PlayerID)
	case network.MsgTypeNightAction:
		var action state.NightAction
		if action, err = state.ParseNightAction(req.Action, req.Target); err == nil {
			_, err = s.game.SubmitNightAction(ctx, sess.RoomID, sess.PlayerID, action)
		}
	case network.MsgTypeNominate:
		_, err = s.game.Nominate(ctx, sess.RoomID, sess.PlayerID, req.Target)
	case network.MsgTypeTallyVotes:
		_, err = s.game.TallyVotes(ctx, sess.RoomID, sess.PlayerID)
	case network.MsgTypeExitRoom:
		if err = s.game.ExitRoom(ctx, sess.RoomID, sess.PlayerID); err == nil {
			s.sessionManager.Remove(sess.GetID())
			sess.CloseAfterFlush()
		}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}

	if err != nil {
		s.replyError(sess, err)
	}
}

// replyError sends a rejection to the session that caused it only.
func (s *GameServer) replyError(sess *session.Session, err error) {
	if errs.KindOf(err) == errs.KindInternal {
		logger.Log.Errorf("[ws] session %s: %v", sess.GetID(), err)
	}
	s.sendEvent(sess, network.MsgTypeError, errorMessage(err))
}

func (s *GameServer) sendEvent(sess *session.Session, msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Errorf("[ws] encode msg %d: %v", msgID, err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Warnf("[ws] session %s: %v", sess.GetID(), err)
	}
}
