package rules

import "github.com/wfunc/mafiaserver/models"

// Evaluate applies the counting rule to the living players: no mafia left
// means the citizens win, mafia holding at least half the table means the
// mafia wins. The police-correct win is decided by ResolveNight instead.
func Evaluate(room *models.Room) models.Winner {
	alive := len(room.Living())
	mafia := len(room.LivingWithRole(models.RoleMafia))

	switch {
	case mafia == 0:
		return models.WinnerCitizens
	case mafia*2 >= alive:
		return models.WinnerMafia
	default:
		return models.WinnerNone
	}
}
