package state

import (
	"errors"
	"time"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/rules"
)

// 状态接口
type State interface {
	GetID() models.Phase
	OnEnter(ctx *Context)
	OnExit(ctx *Context)
	HandleAction(ctx *Context, actorID string, action Action) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine 阶段状态机。机器本身无状态，当前阶段保存在 Room.Phase 中，
// 所以一台机器可以服务所有房间。
type Machine struct {
	states       map[models.Phase]State
	transitions  map[models.Phase]map[models.Phase]func(*models.Room) bool // from -> to -> condition
	distribution rules.Distribution
	source       rules.Source
	now          func() time.Time
}

// NewMachine builds the waiting → night → day → (night|gameOver) machine.
func NewMachine(distribution rules.Distribution, source rules.Source) *Machine {
	m := &Machine{
		states:       make(map[models.Phase]State),
		transitions:  make(map[models.Phase]map[models.Phase]func(*models.Room) bool),
		distribution: distribution,
		source:       source,
		now:          time.Now,
	}
	for _, s := range []State{
		NewWaitingState(),
		NewNightState(),
		NewDayState(),
		NewGameOverState(),
	} {
		m.states[s.GetID()] = s
	}

	started := func(r *models.Room) bool { return r.Game != nil }
	decided := func(r *models.Room) bool { return r.Winner != models.WinnerNone }
	m.AddTransition(models.PhaseWaiting, models.PhaseNight, started)
	m.AddTransition(models.PhaseNight, models.PhaseDay, nil)
	m.AddTransition(models.PhaseDay, models.PhaseNight, nil)
	m.AddTransition(models.PhaseNight, models.PhaseGameOver, decided)
	m.AddTransition(models.PhaseDay, models.PhaseGameOver, decided)
	return m
}

// SetClock replaces the time source used to stamp game start.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// AddTransition registers a legal edge. A nil condition always passes.
func (m *Machine) AddTransition(from, to models.Phase, condition func(*models.Room) bool) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.Phase]func(*models.Room) bool)
	}
	m.transitions[from][to] = condition
}

// CanTransition reports whether room may move to phase to right now.
func (m *Machine) CanTransition(room *models.Room, to models.Phase) bool {
	conditions, exists := m.transitions[room.Phase]
	if !exists {
		return false
	}
	condition, exists := conditions[to]
	if !exists {
		return false
	}
	return condition == nil || condition(room)
}

// Handle routes action to the room's current phase. The caller owns room
// exclusively; on error room must be discarded, since a handler may have
// failed part way.
func (m *Machine) Handle(room *models.Room, actorID string, action Action) ([]models.Event, error) {
	current, ok := m.states[room.Phase]
	if !ok {
		return nil, errs.New(errs.ErrWrongPhase, "room %s is in unknown phase %q", room.Code, room.Phase)
	}
	ctx := &Context{Room: room, machine: m}
	if err := current.HandleAction(ctx, actorID, action); err != nil {
		return nil, err
	}
	return ctx.events, nil
}

// Context carries one action's mutable room and collected events.
type Context struct {
	Room    *models.Room
	machine *Machine
	events  []models.Event
}

// ChangeState moves the room to phase to, running exit and enter hooks.
func (c *Context) ChangeState(to models.Phase) error {
	if !c.machine.CanTransition(c.Room, to) {
		return ErrTransitionNotAllowed
	}
	next, ok := c.machine.states[to]
	if !ok {
		return ErrTransitionNotAllowed
	}

	c.machine.states[c.Room.Phase].OnExit(c)
	c.Room.Phase = to
	if c.Room.Game != nil {
		c.Room.Game.Phase = to
	}
	next.OnEnter(c)
	return nil
}

// Emit queues an event for publication after the room is committed.
func (c *Context) Emit(ev models.Event) {
	ev.RoomID = c.Room.ID
	if ev.Phase == "" {
		ev.Phase = c.Room.Phase
	}
	c.events = append(c.events, ev)
}

// Events returns the events emitted so far.
func (c *Context) Events() []models.Event {
	return c.events
}

// finish records the winner and closes the game.
func (c *Context) finish(winner models.Winner) error {
	c.Room.Winner = winner
	return c.ChangeState(models.PhaseGameOver)
}

// 房间状态基础结构，提供各阶段共用的默认处理
type RoomStateBase struct {
	ID models.Phase
}

func (s *RoomStateBase) GetID() models.Phase {
	return s.ID
}

func (s *RoomStateBase) OnEnter(ctx *Context) {}

func (s *RoomStateBase) OnExit(ctx *Context) {}

// HandleAction rejects everything a phase does not override.
func (s *RoomStateBase) HandleAction(ctx *Context, actorID string, action Action) error {
	switch action.(type) {
	case StartGame:
		if _, err := host(ctx.Room, actorID); err != nil {
			return err
		}
		return errs.New(errs.ErrGameAlreadyStarted, "room %s is in phase %s", ctx.Room.Code, ctx.Room.Phase)
	case Leave:
		_, err := s.leave(ctx, actorID)
		return err
	default:
		return errs.New(errs.ErrWrongPhase, "%s is not allowed during %s", action.Name(), ctx.Room.Phase)
	}
}

// leave removes a non-host player and returns it.
func (s *RoomStateBase) leave(ctx *Context, actorID string) (*models.Player, error) {
	p, ok := ctx.Room.Player(actorID)
	if !ok {
		return nil, errs.New(errs.ErrPlayerNotFound, "player %s is not in room %s", actorID, ctx.Room.Code)
	}
	if ctx.Room.IsHost(actorID) {
		return nil, errs.New(errs.ErrHostCannotExit, "%s hosts room %s", p.Name, ctx.Room.Code)
	}
	ctx.Room.RemovePlayer(actorID)
	ctx.Emit(models.Event{Type: models.EventPlayerExited, PlayerID: actorID})
	return p, nil
}

// host resolves actorID and requires it to be the room host.
func host(room *models.Room, actorID string) (*models.Player, error) {
	p, ok := room.Player(actorID)
	if !ok {
		return nil, errs.New(errs.ErrPlayerNotFound, "player %s is not in room %s", actorID, room.Code)
	}
	if !room.IsHost(actorID) {
		return nil, errs.New(errs.ErrNotHost, "%s is not the host of room %s", p.Name, room.Code)
	}
	return p, nil
}
