package state

import (
	"strings"

	"github.com/wfunc/mafiaserver/errs"
)

// Action is a player command routed to the current phase.
type Action interface {
	Name() string
}

// NightAction is either a MafiaKill or a PoliceGuess.
type NightAction interface {
	Action
	Target() string
	nightAction()
}

type StartGame struct{}

type MafiaKill struct {
	TargetID string
}

type PoliceGuess struct {
	TargetID string
}

// Nominate toggles the actor's nomination of TargetID.
type Nominate struct {
	TargetID string
}

// TallyVotes is the host's "handle vote" command.
type TallyVotes struct{}

// Leave removes the actor from the room.
type Leave struct{}

func (StartGame) Name() string   { return "start_game" }
func (MafiaKill) Name() string   { return "mafia_kill" }
func (PoliceGuess) Name() string { return "police_guess" }
func (Nominate) Name() string    { return "nominate" }
func (TallyVotes) Name() string  { return "tally_votes" }
func (Leave) Name() string       { return "leave" }

func (a MafiaKill) Target() string   { return a.TargetID }
func (a PoliceGuess) Target() string { return a.TargetID }

func (MafiaKill) nightAction()   {}
func (PoliceGuess) nightAction() {}

// ParseNightAction maps a transport payload onto a NightAction.
func ParseNightAction(kind, target string) (NightAction, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errs.New(errs.ErrInvalidInput, "night action needs a target")
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "kill", "mafia_kill", "mafia":
		return MafiaKill{TargetID: target}, nil
	case "guess", "police_guess", "police":
		return PoliceGuess{TargetID: target}, nil
	default:
		return nil, errs.New(errs.ErrInvalidInput, "unknown night action %q", kind)
	}
}
