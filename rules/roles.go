package rules

import (
	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
)

// MinPlayers is the hard floor for starting a game.
const MinPlayers = 4

// MaxPerRole caps the mafia and police counts: a game has at most one of each.
const MaxPerRole = 1

// Distribution is the role ratio policy. Counts are fixed per player count,
// never derived per call.
type Distribution struct {
	MinPlayers    int
	MafiaDivisor  int
	PoliceDivisor int
	MaxMafia      int
	MaxPolice     int
}

// DefaultDistribution yields exactly one mafia and one police for any N >= 4.
func DefaultDistribution() Distribution {
	return Distribution{
		MinPlayers:    MinPlayers,
		MafiaDivisor:  6,
		PoliceDivisor: 6,
		MaxMafia:      1,
		MaxPolice:     1,
	}
}

func (d Distribution) minPlayers() int {
	if d.MinPlayers < MinPlayers {
		return MinPlayers
	}
	return d.MinPlayers
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func share(n, divisor int) int {
	if divisor <= 0 {
		return 0
	}
	return n / divisor
}

// Counts computes how many of each role n players receive.
func (d Distribution) Counts(n int) (mafia, police, civilian int, err error) {
	if n < d.minPlayers() {
		return 0, 0, 0, errs.New(errs.ErrInsufficientPlayers, "need at least %d players, have %d", d.minPlayers(), n)
	}
	mafia = clamp(share(n, d.MafiaDivisor), 1, clamp(d.MaxMafia, 1, MaxPerRole))
	police = clamp(share(n, d.PoliceDivisor), 1, clamp(d.MaxPolice, 1, MaxPerRole))
	// at least one civilian
	if mafia+police >= n {
		police = clamp(n-mafia-1, 0, police)
	}
	return mafia, police, n - mafia - police, nil
}

// Deck builds the multiset of role tags for n players, unshuffled.
func (d Distribution) Deck(n int) ([]models.Role, error) {
	mafia, police, civilian, err := d.Counts(n)
	if err != nil {
		return nil, err
	}
	deck := make([]models.Role, 0, n)
	for i := 0; i < mafia; i++ {
		deck = append(deck, models.RoleMafia)
	}
	for i := 0; i < police; i++ {
		deck = append(deck, models.RolePolice)
	}
	for i := 0; i < civilian; i++ {
		deck = append(deck, models.RoleCivilian)
	}
	return deck, nil
}

// Shuffle is an in-place Fisher–Yates permutation.
func Shuffle(deck []models.Role, src Source) {
	for i := len(deck) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// AssignRoles gives every player exactly one role. It fails without touching
// any player if roles were already dealt or there are too few players.
func AssignRoles(room *models.Room, d Distribution, src Source) error {
	if room.Game != nil {
		return errs.New(errs.ErrGameAlreadyStarted, "room %s is in phase %s", room.Code, room.Phase)
	}
	for _, p := range room.Players {
		if p.Role != models.RoleNone {
			return errs.New(errs.ErrGameAlreadyStarted, "player %s already holds a role", p.Name)
		}
	}

	deck, err := d.Deck(len(room.Players))
	if err != nil {
		return err
	}
	Shuffle(deck, src)

	for i, p := range room.Players {
		p.Role = deck[i]
	}
	return nil
}
