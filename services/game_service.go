// services/game_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/logger"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/persistence"
	"github.com/wfunc/mafiaserver/room"
	"github.com/wfunc/mafiaserver/rules"
	"github.com/wfunc/mafiaserver/state"
)

// Publisher 广播协作者。Publish 在房间提交之后调用，不能阻塞。
type Publisher interface {
	Publish(room *models.Room, events []models.Event)
}

// Metrics is the subset of monitor.Monitor the service reports to.
type Metrics interface {
	ObserveAction(action, result string, duration time.Duration)
	SetActiveRooms(count int)
	IncGamesFinished(winner string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*models.Room, []models.Event) {}

type nopMetrics struct{}

func (nopMetrics) ObserveAction(string, string, time.Duration) {}
func (nopMetrics) SetActiveRooms(int)                          {}
func (nopMetrics) IncGamesFinished(string)                     {}

// Options 游戏规则与房间策略
type Options struct {
	Distribution        rules.Distribution
	AllowDuplicateNames bool
	MaxNameLength       int
	CodeLength          int
	Source              rules.Source
	Now                 func() time.Time
}

// DefaultOptions 默认规则：4人起，一杀手一警察，不允许重名
func DefaultOptions() Options {
	return Options{
		Distribution:  rules.DefaultDistribution(),
		MaxNameLength: 24,
		CodeLength:    room.DefaultCodeLength,
	}
}

// GameService is the operation set transports call. Every mutation runs on a
// private copy of the room under the room's lock, is persisted, and only then
// committed and published.
type GameService struct {
	rooms     *room.Manager
	machine   *state.Machine
	store     persistence.Store
	publisher Publisher
	metrics   Metrics
	opts      Options
	now       func() time.Time
}

func NewGameService(store persistence.Store, publisher Publisher, metrics Metrics, opts Options) *GameService {
	if store == nil {
		store = persistence.NewMemoryStore()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if opts.Source == nil {
		opts.Source = rules.NewTimeSource()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = DefaultOptions().MaxNameLength
	}
	machine := state.NewMachine(opts.Distribution, opts.Source)
	machine.SetClock(opts.Now)

	return &GameService{
		rooms:     room.NewRoomManager(opts.CodeLength),
		machine:   machine,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		now:       opts.Now,
	}
}

// Rooms exposes the registry to transports that subscribe sessions.
func (s *GameService) Rooms() *room.Manager {
	return s.rooms
}

// --- validation ---

func (s *GameService) cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.New(errs.ErrInvalidInput, "player name is required")
	}
	if n := utf8.RuneCountInString(name); n > s.opts.MaxNameLength {
		return "", errs.New(errs.ErrInvalidInput, "player name has %d characters, at most %d allowed", n, s.opts.MaxNameLength)
	}
	return name, nil
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errs.New(errs.ErrInvalidInput, "%s is required", field)
	}
	return nil
}

func (s *GameService) lookup(roomID string) (*room.Room, error) {
	if err := requireID("room id", roomID); err != nil {
		return nil, err
	}
	r, ok := s.rooms.GetRoom(roomID)
	if !ok {
		return nil, errs.New(errs.ErrRoomNotFound, "no active room with id %s", roomID)
	}
	return r, nil
}

// --- mutation pipeline ---

type mutation func(next *models.Room) ([]models.Event, error)

// apply runs fn on a copy of r, bumps the version, persists and commits it,
// then publishes the collected events plus a stateUpdated. Publishing happens
// under the room lock so subscribers see updates in commit order.
func (s *GameService) apply(ctx context.Context, action string, r *room.Room, fn mutation) (*models.Room, error) {
	start := time.Now()
	var (
		events   []models.Event
		finished bool
	)
	committed, err := r.UpdateThen(func(next *models.Room) error {
		before := next.Phase
		evs, err := fn(next)
		if err != nil {
			return err
		}
		next.Version++
		next.UpdatedAt = s.now()
		if err := s.store.SaveRoom(ctx, next); err != nil {
			if errs.KindOf(err) == errs.KindConflict {
				return err
			}
			return fmt.Errorf("save room %s: %w", next.Code, err)
		}
		events = evs
		finished = before != models.PhaseGameOver && next.Phase == models.PhaseGameOver
		return nil
	}, func(committed *models.Room) {
		events = append(events, models.Event{Type: models.EventStateUpdated, RoomID: committed.ID, Phase: committed.Phase})
		s.publisher.Publish(committed, events)
	})
	s.observe(action, start, err)
	if err != nil {
		s.logRejection(action, r.Code(), err)
		return nil, err
	}

	if finished {
		s.metrics.IncGamesFinished(string(committed.Winner))
		logger.Log.Infow("game over", "room", committed.Code, "winner", committed.Winner, "round", committed.Game.Round)
	}
	return committed, nil
}

func (s *GameService) handle(ctx context.Context, roomID, actorID string, action state.Action) (*models.Room, error) {
	start := time.Now()
	r, err := s.lookup(roomID)
	if err == nil {
		err = requireID("player id", actorID)
	}
	if err != nil {
		s.observe(action.Name(), start, err)
		return nil, err
	}
	return s.apply(ctx, action.Name(), r, func(next *models.Room) ([]models.Event, error) {
		return s.machine.Handle(next, actorID, action)
	})
}

func (s *GameService) observe(action string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(errs.CodeOf(err))
		if result == "" {
			result = "internal"
		}
	}
	s.metrics.ObserveAction(action, result, time.Since(start))
}

func (s *GameService) logRejection(action, code string, err error) {
	if errs.KindOf(err) == errs.KindInternal {
		logger.Log.Errorf("[%s] room %s: %v", action, code, err)
		return
	}
	logger.Log.Warnf("[%s] room %s rejected: %v", action, code, err)
}

// --- operations ---

// CreateRoom opens a waiting room hosted by hostName.
func (s *GameService) CreateRoom(ctx context.Context, hostName string) (*models.Room, error) {
	start := time.Now()
	name, err := s.cleanName(hostName)
	if err != nil {
		s.observe("create_room", start, err)
		return nil, err
	}

	hostID := uuid.New().String()
	r := s.rooms.CreateRoom(func(id, code string) *models.Room {
		return models.NewRoom(id, code, hostID, name, s.now())
	})
	created, err := s.apply(ctx, "create_room", r, func(next *models.Room) ([]models.Event, error) {
		return nil, nil
	})
	if err != nil {
		s.rooms.RemoveRoom(r.ID())
		return nil, err
	}

	s.metrics.SetActiveRooms(s.rooms.Count())
	logger.Log.Infow("room created", "room", created.ID, "code", created.Code, "host", name)
	return created, nil
}

// JoinRoom adds playerName to the waiting room with the given join code.
func (s *GameService) JoinRoom(ctx context.Context, code, playerName string) (*models.Room, string, error) {
	start := time.Now()
	name, err := s.cleanName(playerName)
	if err == nil {
		err = requireID("room code", code)
	}
	if err != nil {
		s.observe("join_room", start, err)
		return nil, "", err
	}
	r, ok := s.rooms.GetRoomByCode(code)
	if !ok {
		err := errs.New(errs.ErrRoomNotFound, "no active room with code %s", room.NormalizeCode(code))
		s.observe("join_room", start, err)
		return nil, "", err
	}

	playerID := uuid.New().String()
	joined, err := s.apply(ctx, "join_room", r, func(next *models.Room) ([]models.Event, error) {
		if next.Phase != models.PhaseWaiting {
			return nil, errs.New(errs.ErrRoomAlreadyStarted, "room %s is in phase %s", next.Code, next.Phase)
		}
		if !s.opts.AllowDuplicateNames {
			for _, p := range next.Players {
				if strings.EqualFold(strings.TrimSpace(p.Name), name) {
					return nil, errs.New(errs.ErrDuplicateName, "%q is already playing in room %s", name, next.Code)
				}
			}
		}
		next.Players = append(next.Players, models.NewPlayer(playerID, name))
		return []models.Event{{Type: models.EventPlayerJoined, RoomID: next.ID, PlayerID: playerID, Phase: next.Phase}}, nil
	})
	if err != nil {
		return nil, "", err
	}
	logger.Log.Infow("player joined", "room", joined.Code, "player", playerID, "name", name)
	return joined, playerID, nil
}

// StartGame deals roles and moves the room to its first night.
func (s *GameService) StartGame(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	started, err := s.handle(ctx, roomID, requesterID, state.StartGame{})
	if err != nil {
		return nil, err
	}
	logger.Log.Infow("game started", "room", started.Code, "players", len(started.Players))
	return started, nil
}

// SubmitNightAction records a mafia kill or a police guess.
func (s *GameService) SubmitNightAction(ctx context.Context, roomID, playerID string, action state.NightAction) (*models.Room, error) {
	if action == nil {
		err := errs.New(errs.ErrInvalidInput, "night action is required")
		s.observe("night_action", time.Now(), err)
		return nil, err
	}
	return s.handle(ctx, roomID, playerID, action)
}

// Nominate toggles voterID's nomination of targetID.
func (s *GameService) Nominate(ctx context.Context, roomID, voterID, targetID string) (*models.Room, error) {
	if err := requireID("target id", targetID); err != nil {
		s.observe("nominate", time.Now(), err)
		return nil, err
	}
	return s.handle(ctx, roomID, voterID, state.Nominate{TargetID: strings.TrimSpace(targetID)})
}

// TallyVotes is the host's "handle vote".
func (s *GameService) TallyVotes(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return s.handle(ctx, roomID, requesterID, state.TallyVotes{})
}

// ExitRoom removes a non-host player. The host has to end the game instead.
func (s *GameService) ExitRoom(ctx context.Context, roomID, playerID string) error {
	_, err := s.handle(ctx, roomID, playerID, state.Leave{})
	return err
}

// EndGame deletes the room. Only the host may end it, in any phase.
func (s *GameService) EndGame(ctx context.Context, roomID, requesterID string) error {
	start := time.Now()
	r, err := s.lookup(roomID)
	if err == nil {
		err = requireID("player id", requesterID)
	}
	if err == nil {
		snap := r.Snapshot()
		if p, ok := snap.Player(requesterID); !ok {
			err = errs.New(errs.ErrPlayerNotFound, "player %s is not in room %s", requesterID, snap.Code)
		} else if !snap.IsHost(requesterID) {
			err = errs.New(errs.ErrNotHost, "only the host can end room %s, %s is not the host", snap.Code, p.Name)
		}
	}
	s.observe("end_game", start, err)
	if err != nil {
		if r != nil {
			s.logRejection("end_game", r.Code(), err)
		}
		return err
	}

	if !s.close(ctx, roomID) {
		return errs.New(errs.ErrRoomNotFound, "room %s was already closed", roomID)
	}
	logger.Log.Infow("room ended by host", "room", r.Code())
	return nil
}

// close unregisters, deletes and announces a room.
func (s *GameService) close(ctx context.Context, roomID string) bool {
	last, ok := s.rooms.RemoveRoom(roomID)
	if !ok {
		return false
	}
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		logger.Log.Errorf("[close] delete room %s: %v", last.Code, err)
	}
	s.metrics.SetActiveRooms(s.rooms.Count())
	s.publisher.Publish(last, []models.Event{{Type: models.EventGameEnded, RoomID: last.ID, Phase: last.Phase}})
	return true
}

// Subscribe runs register and then fn with the current room while no update
// can commit. A subscriber registered this way receives every update
// published after the state fn saw, and nothing older.
func (s *GameService) Subscribe(roomID string, register func(), fn func(current *models.Room)) error {
	r, err := s.lookup(roomID)
	if err != nil {
		return err
	}
	return r.Read(func(current *models.Room) {
		register()
		fn(current)
	})
}

// GetRoom returns a consistent snapshot of the room.
func (s *GameService) GetRoom(roomID string) (*models.Room, error) {
	r, err := s.lookup(roomID)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

// GetRoomByCode returns a snapshot of the room with the given join code.
func (s *GameService) GetRoomByCode(code string) (*models.Room, error) {
	if err := requireID("room code", code); err != nil {
		return nil, err
	}
	r, ok := s.rooms.GetRoomByCode(code)
	if !ok {
		return nil, errs.New(errs.ErrRoomNotFound, "no active room with code %s", room.NormalizeCode(code))
	}
	return r.Snapshot(), nil
}

// ListRooms 房间列表，按创建时间排序
func (s *GameService) ListRooms() []models.RoomSummary {
	rooms := s.rooms.Rooms()
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Snapshot().Summary())
	}
	return out
}

// ReapIdle closes rooms without an accepted action for maxIdle.
func (s *GameService) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	reaped := 0
	for _, r := range s.rooms.IdleRooms(s.now().Add(-maxIdle)) {
		if s.close(ctx, r.ID()) {
			reaped++
			logger.Log.Infow("idle room reaped", "room", r.Code(), "idle_timeout", maxIdle)
		}
	}
	return reaped
}

// Restore registers every room found in the store. Rooms whose id or code is
// already taken are skipped.
func (s *GameService) Restore(ctx context.Context) (int, error) {
	stored, err := s.store.ListRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored rooms: %w", err)
	}
	restored := 0
	for _, st := range stored {
		if _, err := s.rooms.AddRoom(st); err != nil {
			if errors.Is(err, errs.ErrConflict) {
				logger.Log.Warnf("[Restore] skip room %s: %v", st.ID, err)
				continue
			}
			return restored, err
		}
		restored++
	}
	s.metrics.SetActiveRooms(s.rooms.Count())
	if restored > 0 {
		logger.Log.Infof("restored %d rooms from store", restored)
	}
	return restored, nil
}
