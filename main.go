package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/mafiaserver/broadcast"
	"github.com/wfunc/mafiaserver/config"
	"github.com/wfunc/mafiaserver/logger"
	"github.com/wfunc/mafiaserver/monitor"
	"github.com/wfunc/mafiaserver/persistence"
	"github.com/wfunc/mafiaserver/server"
	"github.com/wfunc/mafiaserver/services"
	"github.com/wfunc/mafiaserver/session"
	"github.com/wfunc/mafiaserver/timer"
)

func openStore(cfg *config.Config) (persistence.Store, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case config.DriverGorm:
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return persistence.NewMemoryStore(), nil
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init()
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if cfg.Log.Development {
		logger.InitDevelopment()
	} else {
		logger.Init()
	}
	defer logger.Sync()

	// Initialize storage
	store, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Infof("Room store ready (driver=%s)", cfg.Database.Driver)

	mon := monitor.NewMonitor("mafia")
	if cfg.Server.MetricsAddress != "" {
		mon.StartServer(cfg.Server.MetricsAddress)
	}

	sessions := session.NewManager()
	game := services.NewGameService(store, broadcast.NewRoomBroadcaster(sessions, mon), mon, services.Options{
		Distribution:        cfg.Game.Distribution(),
		AllowDuplicateNames: cfg.Game.AllowDuplicateNames,
		MaxNameLength:       cfg.Game.MaxNameLength,
		CodeLength:          cfg.Game.CodeLength,
	})

	ctx := context.Background()
	restored, err := game.Restore(ctx)
	if err != nil {
		logger.Log.Fatalf("Failed to restore rooms: %v", err)
	}
	logger.Log.Infof("Restored %d rooms", restored)

	// 定期清理空闲房间
	scheduler := timer.NewScheduler()
	defer scheduler.Stop()
	if cfg.Rooms.IdleTimeout > 0 && cfg.Rooms.ReapInterval > 0 {
		scheduler.Every("reap-idle-rooms", cfg.Rooms.ReapInterval, func() {
			if n := game.ReapIdle(ctx, cfg.Rooms.IdleTimeout); n > 0 {
				logger.Log.Infof("Reaped %d idle rooms", n)
			}
		})
	}

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, game, sessions, mon)
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Log.Info("Shutting down game server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warnf("Shutdown: %v", err)
		}
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
