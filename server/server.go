package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/mafiaserver/logger"
	gamerpc "github.com/wfunc/mafiaserver/rpc"
	"github.com/wfunc/mafiaserver/services"
	"github.com/wfunc/mafiaserver/session"
)

// DefaultHeartbeat 客户端至少每隔这么久发一个包，否则断开
const DefaultHeartbeat = 30 * time.Second

// OnlineGauge tracks connected realtime sessions.
type OnlineGauge interface {
	IncOnlinePlayers()
	DecOnlinePlayers()
}

type nopGauge struct{}

func (nopGauge) IncOnlinePlayers() {}
func (nopGauge) DecOnlinePlayers() {}

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	game           *services.GameService
	sessionManager *session.Manager
	online         OnlineGauge
	rpcServer      *gamerpc.Server
	httpServer     *http.Server
	heartbeat      time.Duration
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

// NewGameServer wires the HTTP API, the websocket endpoint and, when rpcAddr
// is set, the RPC admin service around game. Sessions added here receive the
// events game publishes, so sessions must be the manager behind game's publisher.
func NewGameServer(addr, rpcAddr string, game *services.GameService, sessions *session.Manager,
	online OnlineGauge) (*GameServer, error) {
	if online == nil {
		online = nopGauge{}
	}
	s := &GameServer{
		addr:           addr,
		game:           game,
		sessionManager: sessions,
		online:         online,
		heartbeat:      DefaultHeartbeat,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化RPC服务器
	if rpcAddr != "" {
		rpcServer, err := gamerpc.NewServer(rpcAddr)
		if err != nil {
			return nil, err
		}
		// 注册RPC服务
		if err := rpcServer.Register(gamerpc.NewGameService(game)); err != nil {
			rpcServer.Stop()
			return nil, err
		}
		s.rpcServer = rpcServer
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// SetHeartbeat changes the websocket idle limit for new connections.
func (s *GameServer) SetHeartbeat(d time.Duration) {
	s.heartbeat = d
}

func (s *GameServer) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}

	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
