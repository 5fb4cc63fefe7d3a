package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/state"
)

type createRoomRequest struct {
	HostName string `json:"host_name"`
}

type joinRoomRequest struct {
	Code       string `json:"code"`
	PlayerName string `json:"player_name"`
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

type nightActionRequest struct {
	PlayerID string `json:"player_id"`
	Action   string `json:"action"`
	Target   string `json:"target_id"`
}

type nominateRequest struct {
	PlayerID string `json:"player_id"`
	Target   string `json:"target_id"`
}

type roomResponse struct {
	Room     *models.RoomView `json:"room"`
	PlayerID string           `json:"player_id,omitempty"`
}

type roomListResponse struct {
	Rooms []models.RoomSummary `json:"rooms"`
}

// Handler builds the router for the HTTP API and the websocket endpoint.
func (s *GameServer) Handler() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/join", s.handleJoinRoom).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/code/{code}", s.handleGetRoomByCode).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}", s.handleGetRoom).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}", s.handleEndGame).Methods(http.MethodDelete, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/start", s.handleStartGame).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/night", s.handleNightAction).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/nominate", s.handleNominate).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/tally", s.handleTallyVotes).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/players/{playerId}", s.handleExitRoom).Methods(http.MethodDelete, http.MethodOptions)

	r.HandleFunc("/ws/{roomId}", s.handleWebSocket)

	return r
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS Headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.New(errs.ErrInvalidInput, "malformed request body: %v", err)
	}
	return nil
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"rooms":    s.game.Rooms().Count(),
		"sessions": s.sessionManager.Count(),
	})
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.game.CreateRoom(r.Context(), req.HostName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomResponse{Room: room.View(room.HostID), PlayerID: room.HostID})
}

func (s *GameServer) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, playerID, err := s.game.JoinRoom(r.Context(), req.Code, req.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: room.View(playerID), PlayerID: playerID})
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, roomListResponse{Rooms: s.game.ListRooms()})
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.game.GetRoom(mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: room.View(r.URL.Query().Get("player"))})
}

func (s *GameServer) handleGetRoomByCode(w http.ResponseWriter, r *http.Request) {
	room, err := s.game.GetRoomByCode(mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: room.View(r.URL.Query().Get("player"))})
}

func (s *GameServer) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.game.StartGame(r.Context(), mux.Vars(r)["roomId"], req.PlayerID)
	s.respondRoom(w, room, req.PlayerID, err)
}

func (s *GameServer) handleNightAction(w http.ResponseWriter, r *http.Request) {
	var req nightActionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	action, err := state.ParseNightAction(req.Action, req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	room, err := s.game.SubmitNightAction(r.Context(), mux.Vars(r)["roomId"], req.PlayerID, action)
	s.respondRoom(w, room, req.PlayerID, err)
}

func (s *GameServer) handleNominate(w http.ResponseWriter, r *http.Request) {
	var req nominateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.game.Nominate(r.Context(), mux.Vars(r)["roomId"], req.PlayerID, req.Target)
	s.respondRoom(w, room, req.PlayerID, err)
}

func (s *GameServer) handleTallyVotes(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.game.TallyVotes(r.Context(), mux.Vars(r)["roomId"], req.PlayerID)
	s.respondRoom(w, room, req.PlayerID, err)
}

// handleEndGame deletes the room; the host is named by the player query parameter.
func (s *GameServer) handleEndGame(w http.ResponseWriter, r *http.Request) {
	if err := s.game.EndGame(r.Context(), mux.Vars(r)["roomId"], r.URL.Query().Get("player")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *GameServer) handleExitRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.game.ExitRoom(r.Context(), vars["roomId"], vars["playerId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *GameServer) respondRoom(w http.ResponseWriter, room *models.Room, viewerID string, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Room: room.View(viewerID)})
}
