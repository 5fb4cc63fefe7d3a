package rules

import (
	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
)

// NightOutcome describes a resolved night round.
type NightOutcome struct {
	Killed        string
	PoliceCorrect bool
	PoliceID      string
	MafiaID       string // set when PoliceCorrect
}

// livingActor returns the acting player, rejecting unknown and dead ones.
func livingActor(room *models.Room, id string) (*models.Player, error) {
	p, ok := room.Player(id)
	if !ok {
		return nil, errs.New(errs.ErrPlayerNotFound, "player %s is not in room %s", id, room.Code)
	}
	if !p.IsAlive {
		return nil, errs.New(errs.ErrDeadPlayer, "%s has been eliminated", p.Name)
	}
	return p, nil
}

// livingTarget rejects targets that are missing, dead, or hold excluded.
func livingTarget(room *models.Room, id string, excluded models.Role) (*models.Player, error) {
	if id == "" {
		return nil, errs.New(errs.ErrInvalidTarget, "target is required")
	}
	t, ok := room.Player(id)
	if !ok {
		return nil, errs.New(errs.ErrInvalidTarget, "target %s is not in this room", id)
	}
	if !t.IsAlive {
		return nil, errs.New(errs.ErrInvalidTarget, "target %s is already dead", t.Name)
	}
	if t.Role == excluded {
		return nil, errs.New(errs.ErrInvalidTarget, "target %s is also %s", t.Name, excluded)
	}
	return t, nil
}

// RecordMafiaTarget stores the mafia kill for this round. Resubmission
// overwrites the previous target.
func RecordMafiaTarget(room *models.Room, actorID, targetID string) error {
	actor, err := livingActor(room, actorID)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleMafia {
		return errs.New(errs.ErrWrongRole, "only the mafia can choose a kill target, %s is not mafia", actor.Name)
	}
	target, err := livingTarget(room, targetID, models.RoleMafia)
	if err != nil {
		return err
	}
	room.Game.NightActions.MafiaTarget = target.ID
	return nil
}

// RecordPoliceGuess stores the police accusation. The mafia must act first.
func RecordPoliceGuess(room *models.Room, actorID, targetID string) error {
	actor, err := livingActor(room, actorID)
	if err != nil {
		return err
	}
	if actor.Role != models.RolePolice {
		return errs.New(errs.ErrWrongRole, "only the police can guess, %s is not police", actor.Name)
	}
	if room.Game.NightActions.MafiaTarget == "" {
		return errs.New(errs.ErrActionNotYetAvailable, "the mafia has not chosen a target yet")
	}
	if room.Game.NightActions.PoliceGuess != "" {
		return errs.New(errs.ErrActionNotYetAvailable, "police already guessed this round")
	}
	target, err := livingTarget(room, targetID, models.RolePolice)
	if err != nil {
		return err
	}
	room.Game.NightActions.PoliceGuess = target.ID
	return nil
}

// NightReady reports whether the round can resolve: the mafia has acted and
// either the police has guessed or no living police remains.
func NightReady(room *models.Room) bool {
	na := room.Game.NightActions
	if na.MafiaTarget == "" {
		return false
	}
	return na.PoliceGuess != "" || len(room.LivingWithRole(models.RolePolice)) == 0
}

// ResolveNight applies the kill and checks the police guess. It does not
// change phase.
func ResolveNight(room *models.Room) NightOutcome {
	na := room.Game.NightActions
	out := NightOutcome{}

	// the guess is judged against roles as they stood before the kill
	if na.PoliceGuess != "" {
		if guessed, ok := room.Player(na.PoliceGuess); ok && guessed.IsAlive && guessed.Role == models.RoleMafia {
			out.PoliceCorrect = true
			out.MafiaID = guessed.ID
		}
		for _, p := range room.Players {
			if p.Role == models.RolePolice && p.IsAlive {
				out.PoliceID = p.ID
				break
			}
		}
	}

	if victim, ok := room.Player(na.MafiaTarget); ok && victim.IsAlive {
		victim.IsAlive = false
		out.Killed = victim.ID
		room.Game.Eliminations = append(room.Game.Eliminations, models.Elimination{
			PlayerID: victim.ID,
			Phase:    models.PhaseNight,
			Round:    room.Game.Round,
		})
	}
	return out
}

// ResetNight clears the night buffers.
func ResetNight(room *models.Room) {
	room.Game.NightActions = models.NightActions{}
}
