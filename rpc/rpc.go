package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/mafiaserver/logger"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server with its own service registry.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register exposes rcvr's exported methods under its type name.
func (s *Server) Register(rcvr interface{}) error {
	return s.rpc.Register(rcvr)
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the read-only admin surface exposed over RPC.
type GameService struct {
	game *services.GameService
}

// NewGameService creates a new GameService.
func NewGameService(game *services.GameService) *GameService {
	return &GameService{game: game}
}

// GetRoomArgs selects a room by id, or by code when RoomID is empty.
// ViewerID scopes role visibility; empty means the public view.
type GetRoomArgs struct {
	RoomID   string
	Code     string
	ViewerID string
}

type GetRoomReply struct {
	Room *models.RoomView
}

// GetRoom must follow the net/rpc signature: exported method, exported arguments,
// second argument is a pointer, return type is error.
func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	var (
		room *models.Room
		err  error
	)
	if args.RoomID != "" {
		room, err = gs.game.GetRoom(args.RoomID)
	} else {
		room, err = gs.game.GetRoomByCode(args.Code)
	}
	if err != nil {
		return err
	}
	reply.Room = room.View(args.ViewerID)
	return nil
}

// ListRoomsArgs optionally filters by phase.
type ListRoomsArgs struct {
	Phase models.Phase
}

type ListRoomsReply struct {
	Rooms []models.RoomSummary
}

func (gs *GameService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, summary := range gs.game.ListRooms() {
		if args.Phase == "" || summary.Phase == args.Phase {
			reply.Rooms = append(reply.Rooms, summary)
		}
	}
	return nil
}
