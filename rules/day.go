package rules

import (
	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
)

// TallyResult is the outcome of a host-triggered vote count.
type TallyResult struct {
	Eliminated string
	Counts     map[string]int
	Tied       []string // targets sharing the top count, in first-seen order
}

// ResetDay opens a fresh voting round.
func ResetDay(room *models.Room) {
	room.Game.DayActions = nil
	for _, p := range room.Players {
		p.CanVote = true
		p.VotesReceived = []string{}
	}
}

// ToggleNomination records voter's nomination of target. Nominating the same
// target again withdraws it; nominating someone else replaces the earlier
// choice and counts as a new submission.
func ToggleNomination(room *models.Room, voterID, targetID string) (nominated bool, err error) {
	voter, err := livingActor(room, voterID)
	if err != nil {
		return false, err
	}
	if targetID == voter.ID {
		return false, errs.New(errs.ErrInvalidTarget, "%s cannot nominate themselves", voter.Name)
	}
	target, err := livingTarget(room, targetID, models.RoleNone)
	if err != nil {
		return false, err
	}

	votes := room.Game.DayActions
	previous := ""
	for i, v := range votes {
		if v.Voter == voter.ID {
			previous = v.Target
			votes = append(votes[:i:i], votes[i+1:]...)
			break
		}
	}
	if previous != target.ID {
		votes = append(votes, models.Vote{Voter: voter.ID, Target: target.ID})
		nominated = true
	}
	room.Game.DayActions = votes
	syncVotes(room)
	return nominated, nil
}

// syncVotes derives CanVote and VotesReceived from DayActions.
func syncVotes(room *models.Room) {
	received := make(map[string][]string)
	voted := make(map[string]bool)
	for _, v := range room.Game.DayActions {
		received[v.Target] = append(received[v.Target], v.Voter)
		voted[v.Voter] = true
	}
	for _, p := range room.Players {
		p.CanVote = !voted[p.ID]
		if r := received[p.ID]; r != nil {
			p.VotesReceived = r
		} else {
			p.VotesReceived = []string{}
		}
	}
}

// DropPlayerVotes removes every nomination cast by or against id.
func DropPlayerVotes(room *models.Room, id string) {
	kept := room.Game.DayActions[:0:0]
	for _, v := range room.Game.DayActions {
		if v.Voter != id && v.Target != id {
			kept = append(kept, v)
		}
	}
	room.Game.DayActions = kept
	syncVotes(room)
}

// Tally counts nominations and eliminates the plurality target. Ties go to
// the target nominated first among the tied set.
func Tally(room *models.Room) (TallyResult, error) {
	res := TallyResult{Counts: make(map[string]int)}
	var order []string
	for _, v := range room.Game.DayActions {
		t, ok := room.Player(v.Target)
		if !ok || !t.IsAlive {
			continue
		}
		if _, seen := res.Counts[v.Target]; !seen {
			order = append(order, v.Target)
		}
		res.Counts[v.Target]++
	}
	if len(order) == 0 {
		return res, errs.New(errs.ErrNoNominations, "nobody has been nominated this round")
	}

	best := 0
	for _, id := range order {
		if c := res.Counts[id]; c > best {
			best = c
			res.Eliminated = id
		}
	}
	for _, id := range order {
		if res.Counts[id] == best {
			res.Tied = append(res.Tied, id)
		}
	}

	victim, _ := room.Player(res.Eliminated)
	victim.IsAlive = false
	room.Game.Eliminations = append(room.Game.Eliminations, models.Elimination{
		PlayerID: victim.ID,
		Phase:    models.PhaseDay,
		Round:    room.Game.Round,
	})
	return res, nil
}
