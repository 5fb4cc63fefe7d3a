package state

import (
	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/rules"
)

// 等待状态：玩家加入，房主开始游戏
type WaitingState struct {
	RoomStateBase
}

func NewWaitingState() *WaitingState {
	return &WaitingState{RoomStateBase{ID: models.PhaseWaiting}}
}

func (s *WaitingState) HandleAction(ctx *Context, actorID string, action Action) error {
	switch action.(type) {
	case StartGame:
		return s.start(ctx, actorID)
	default:
		return s.RoomStateBase.HandleAction(ctx, actorID, action)
	}
}

func (s *WaitingState) start(ctx *Context, actorID string) error {
	if _, err := host(ctx.Room, actorID); err != nil {
		return err
	}
	m := ctx.machine
	if err := rules.AssignRoles(ctx.Room, m.distribution, m.source); err != nil {
		return err
	}
	ctx.Room.Game = &models.Game{
		Phase:     models.PhaseWaiting,
		StartedAt: m.now(),
	}
	ctx.Emit(models.Event{Type: models.EventGameStarted, PlayerID: actorID})
	return ctx.ChangeState(models.PhaseNight)
}

// 夜晚：杀手先行动，警察随后猜测
type NightState struct {
	RoomStateBase
}

func NewNightState() *NightState {
	return &NightState{RoomStateBase{ID: models.PhaseNight}}
}

func (s *NightState) OnEnter(ctx *Context) {
	ctx.Room.Game.Round++
	rules.ResetNight(ctx.Room)
}

func (s *NightState) HandleAction(ctx *Context, actorID string, action Action) error {
	switch a := action.(type) {
	case MafiaKill:
		if err := rules.RecordMafiaTarget(ctx.Room, actorID, a.TargetID); err != nil {
			return err
		}
		return s.tryResolve(ctx)
	case PoliceGuess:
		if err := rules.RecordPoliceGuess(ctx.Room, actorID, a.TargetID); err != nil {
			return err
		}
		return s.tryResolve(ctx)
	case Leave:
		if _, err := s.leave(ctx, actorID); err != nil {
			return err
		}
		na := &ctx.Room.Game.NightActions
		if na.MafiaTarget == actorID {
			na.MafiaTarget = ""
		}
		if na.PoliceGuess == actorID {
			na.PoliceGuess = ""
		}
		if w := rules.Evaluate(ctx.Room); w != models.WinnerNone {
			return ctx.finish(w)
		}
		return s.tryResolve(ctx)
	default:
		return s.RoomStateBase.HandleAction(ctx, actorID, action)
	}
}

// tryResolve resolves the round once every living night role has acted.
func (s *NightState) tryResolve(ctx *Context) error {
	if !rules.NightReady(ctx.Room) {
		return nil
	}
	out := rules.ResolveNight(ctx.Room)
	if out.Killed != "" {
		ctx.Emit(models.Event{Type: models.EventPlayerKilled, PlayerID: out.Killed})
	}
	if out.PoliceCorrect {
		ctx.Emit(models.Event{Type: models.EventPoliceWinAnnounced, PlayerID: out.PoliceID, TargetID: out.MafiaID})
		return ctx.finish(models.WinnerPolice)
	}
	if w := rules.Evaluate(ctx.Room); w != models.WinnerNone {
		return ctx.finish(w)
	}
	return ctx.ChangeState(models.PhaseDay)
}

// 白天：提名，房主唱票
type DayState struct {
	RoomStateBase
}

func NewDayState() *DayState {
	return &DayState{RoomStateBase{ID: models.PhaseDay}}
}

func (s *DayState) OnEnter(ctx *Context) {
	rules.ResetNight(ctx.Room)
	rules.ResetDay(ctx.Room)
}

func (s *DayState) OnExit(ctx *Context) {
	rules.ResetDay(ctx.Room)
}

func (s *DayState) HandleAction(ctx *Context, actorID string, action Action) error {
	switch a := action.(type) {
	case Nominate:
		_, err := rules.ToggleNomination(ctx.Room, actorID, a.TargetID)
		return err
	case TallyVotes:
		if _, err := host(ctx.Room, actorID); err != nil {
			return err
		}
		res, err := rules.Tally(ctx.Room)
		if err != nil {
			return err
		}
		ctx.Emit(models.Event{Type: models.EventPlayerKilled, PlayerID: res.Eliminated})
		if w := rules.Evaluate(ctx.Room); w != models.WinnerNone {
			return ctx.finish(w)
		}
		return ctx.ChangeState(models.PhaseNight)
	case Leave:
		if _, err := s.leave(ctx, actorID); err != nil {
			return err
		}
		rules.DropPlayerVotes(ctx.Room, actorID)
		if w := rules.Evaluate(ctx.Room); w != models.WinnerNone {
			return ctx.finish(w)
		}
		return nil
	case MafiaKill, PoliceGuess:
		return errs.New(errs.ErrWrongPhase, "night actions are only accepted at night, room is in %s", ctx.Room.Phase)
	default:
		return s.RoomStateBase.HandleAction(ctx, actorID, action)
	}
}

// 游戏结束：只读，仅允许离开
type GameOverState struct {
	RoomStateBase
}

func NewGameOverState() *GameOverState {
	return &GameOverState{RoomStateBase{ID: models.PhaseGameOver}}
}

func (s *GameOverState) HandleAction(ctx *Context, actorID string, action Action) error {
	switch action.(type) {
	case StartGame, Leave:
		return s.RoomStateBase.HandleAction(ctx, actorID, action)
	default:
		return errs.New(errs.ErrWrongPhase, "game is over, %s won", ctx.Room.Winner)
	}
}
