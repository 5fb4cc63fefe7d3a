package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/persistence"
	"github.com/wfunc/mafiaserver/state"
)

// zeroSource deals [police, civilian..., mafia] in join order for 4..6 players.
type zeroSource struct{}

func (zeroSource) Intn(int) int { return 0 }

type fakePublisher struct {
	mutex  sync.Mutex
	events []models.Event
}

func (p *fakePublisher) Publish(room *models.Room, events []models.Event) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = append(p.events, events...)
}

func (p *fakePublisher) types() []models.EventType {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *fakePublisher) reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = nil
}

type fakeMetrics struct {
	mutex    sync.Mutex
	results  map[string]int
	finished []string
	rooms    int
}

func (m *fakeMetrics) ObserveAction(action, result string, _ time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[action+"/"+result]++
}
func (m *fakeMetrics) SetActiveRooms(n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rooms = n
}
func (m *fakeMetrics) IncGamesFinished(winner string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.finished = append(m.finished, winner)
}

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

// failingStore rejects every write after the first n.
type failingStore struct {
	*persistence.MemoryStore
	allowed int
}

func (s *failingStore) SaveRoom(ctx context.Context, room *models.Room) error {
	if s.allowed <= 0 {
		return errors.New("disk on fire")
	}
	s.allowed--
	return s.MemoryStore.SaveRoom(ctx, room)
}

type fixture struct {
	svc     *GameService
	store   *persistence.MemoryStore
	pub     *fakePublisher
	metrics *fakeMetrics
	clock   *fakeClock
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:   persistence.NewMemoryStore(),
		pub:     &fakePublisher{},
		metrics: &fakeMetrics{},
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)},
	}
	opts := DefaultOptions()
	opts.Source = zeroSource{}
	opts.Now = f.clock.Now
	for _, fn := range mutate {
		fn(&opts)
	}
	f.svc = NewGameService(f.store, f.pub, f.metrics, opts)
	return f
}

// table holds a started four player game: host is police, d is mafia.
type table struct {
	room              *models.Room
	host, b, c, mafia string
}

func (f *fixture) lobby(t *testing.T, names ...string) (*models.Room, []string) {
	t.Helper()
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	ids := []string{room.HostID}
	for _, name := range names {
		joined, id, err := f.svc.JoinRoom(ctx, room.Code, name)
		require.NoError(t, err)
		room = joined
		ids = append(ids, id)
	}
	return room, ids
}

func (f *fixture) started(t *testing.T) table {
	t.Helper()
	room, ids := f.lobby(t, "Bob", "Carol", "Dave")
	room, err := f.svc.StartGame(context.Background(), room.ID, ids[0])
	require.NoError(t, err)

	tb := table{room: room, host: ids[0], b: ids[1], c: ids[2], mafia: ids[3]}
	host, _ := room.Player(tb.host)
	mafia, _ := room.Player(tb.mafia)
	require.Equal(t, models.RolePolice, host.Role)
	require.Equal(t, models.RoleMafia, mafia.Role)
	return tb
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRoom(ctx, "   ")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
	_, err = f.svc.CreateRoom(ctx, "a name that is far too long for the lobby")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	room, err := f.svc.CreateRoom(ctx, " Alice ")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseWaiting, room.Phase)
	assert.Nil(t, room.Game)
	assert.Equal(t, int64(1), room.Version)
	require.Len(t, room.Players, 1)
	assert.Equal(t, "Alice", room.Players[0].Name)
	assert.Equal(t, room.HostID, room.Players[0].ID)
	assert.Equal(t, 1, f.metrics.rooms)

	stored, err := f.store.LoadRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Code, stored.Code)
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, _ := f.lobby(t, "Bob")

	_, _, err := f.svc.JoinRoom(ctx, "NOPE00", "Carol")
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))

	_, _, err = f.svc.JoinRoom(ctx, room.Code, " bob ")
	assert.True(t, errors.Is(err, errs.ErrDuplicateName), "names compare case-insensitively")

	joined, id, err := f.svc.JoinRoom(ctx, room.Code, "Carol")
	require.NoError(t, err)
	assert.Len(t, joined.Players, 3)
	assert.Equal(t, id, joined.Players[2].ID)
	assert.Contains(t, f.pub.types(), models.EventPlayerJoined)
}

func TestJoinRoom_DuplicatesAllowedByPolicy(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AllowDuplicateNames = true })
	room, _ := f.lobby(t, "Bob")

	_, _, err := f.svc.JoinRoom(context.Background(), room.Code, "Bob")
	assert.NoError(t, err)
}

func TestJoinRoom_AfterStart(t *testing.T) {
	f := newFixture(t)
	tb := f.started(t)

	_, _, err := f.svc.JoinRoom(context.Background(), tb.room.Code, "Eve")
	assert.True(t, errors.Is(err, errs.ErrRoomAlreadyStarted))
}

func TestStartGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, ids := f.lobby(t, "Bob", "Carol")

	_, err := f.svc.StartGame(ctx, room.ID, ids[0])
	assert.True(t, errors.Is(err, errs.ErrInsufficientPlayers))

	room, id, err := f.svc.JoinRoom(ctx, room.Code, "Dave")
	require.NoError(t, err)
	_, err = f.svc.StartGame(ctx, room.ID, id)
	assert.True(t, errors.Is(err, errs.ErrNotHost))

	f.pub.reset()
	started, err := f.svc.StartGame(ctx, room.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.PhaseNight, started.Phase)
	assert.Equal(t, []models.EventType{models.EventGameStarted, models.EventStateUpdated}, f.pub.types())

	_, err = f.svc.StartGame(ctx, room.ID, ids[0])
	assert.True(t, errors.Is(err, errs.ErrGameAlreadyStarted))
}

func TestRejectedActionLeavesRoomUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tb := f.started(t)
	f.pub.reset()

	_, err := f.svc.SubmitNightAction(ctx, tb.room.ID, tb.host, state.PoliceGuess{TargetID: tb.mafia})
	assert.True(t, errors.Is(err, errs.ErrActionNotYetAvailable))

	_, err = f.svc.SubmitNightAction(ctx, tb.room.ID, tb.b, state.MafiaKill{TargetID: tb.c})
	assert.True(t, errors.Is(err, errs.ErrWrongRole))

	_, err = f.svc.TallyVotes(ctx, tb.room.ID, tb.host)
	assert.True(t, errors.Is(err, errs.ErrWrongPhase))

	snap, err := f.svc.GetRoom(tb.room.ID)
	require.NoError(t, err)
	assert.Equal(t, tb.room.Version, snap.Version)
	assert.Empty(t, f.pub.types(), "rejections must not publish")
	assert.Equal(t, 1, f.metrics.results["police_guess/action_not_yet_available"])
}

func TestFullGame_CitizensWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tb := f.started(t)
	id := tb.room.ID

	_, err := f.svc.SubmitNightAction(ctx, id, tb.mafia, state.MafiaKill{TargetID: tb.b})
	require.NoError(t, err)
	f.pub.reset()
	room, err := f.svc.SubmitNightAction(ctx, id, tb.host, state.PoliceGuess{TargetID: tb.c})
	require.NoError(t, err)
	require.Equal(t, models.PhaseDay, room.Phase)
	assert.Equal(t, []models.EventType{models.EventPlayerKilled, models.EventStateUpdated}, f.pub.types())

	dead, _ := room.Player(tb.b)
	assert.False(t, dead.IsAlive)

	_, err = f.svc.Nominate(ctx, id, tb.b, tb.mafia)
	assert.True(t, errors.Is(err, errs.ErrDeadPlayer))

	for _, voter := range []string{tb.c, tb.host} {
		_, err = f.svc.Nominate(ctx, id, voter, tb.mafia)
		require.NoError(t, err)
	}
	room, err = f.svc.Nominate(ctx, id, tb.mafia, tb.c)
	require.NoError(t, err)
	m, _ := room.Player(tb.mafia)
	assert.ElementsMatch(t, []string{tb.c, tb.host}, m.VotesReceived)

	_, err = f.svc.TallyVotes(ctx, id, tb.c)
	assert.True(t, errors.Is(err, errs.ErrNotHost))

	room, err = f.svc.TallyVotes(ctx, id, tb.host)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseGameOver, room.Phase)
	assert.Equal(t, models.WinnerCitizens, room.Winner)
	assert.Equal(t, []string{"citizens"}, f.metrics.finished)

	_, err = f.svc.Nominate(ctx, id, tb.c, tb.host)
	assert.True(t, errors.Is(err, errs.ErrWrongPhase), "a finished game is read-only")
}

func TestFullGame_PoliceWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tb := f.started(t)

	_, err := f.svc.SubmitNightAction(ctx, tb.room.ID, tb.mafia, state.MafiaKill{TargetID: tb.b})
	require.NoError(t, err)
	room, err := f.svc.SubmitNightAction(ctx, tb.room.ID, tb.host, state.PoliceGuess{TargetID: tb.mafia})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseGameOver, room.Phase)
	assert.Equal(t, models.WinnerPolice, room.Winner)
	b, _ := room.Player(tb.b)
	assert.False(t, b.IsAlive)
	assert.Contains(t, f.pub.types(), models.EventPoliceWinAnnounced)
}

func TestExitRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, ids := f.lobby(t, "Bob")

	err := f.svc.ExitRoom(ctx, room.ID, ids[0])
	assert.True(t, errors.Is(err, errs.ErrHostCannotExit))

	require.NoError(t, f.svc.ExitRoom(ctx, room.ID, ids[1]))
	snap, err := f.svc.GetRoom(room.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)

	err = f.svc.ExitRoom(ctx, room.ID, ids[1])
	assert.True(t, errors.Is(err, errs.ErrPlayerNotFound))
}

func TestEndGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tb := f.started(t)

	err := f.svc.EndGame(ctx, tb.room.ID, tb.b)
	assert.True(t, errors.Is(err, errs.ErrNotHost))

	f.pub.reset()
	require.NoError(t, f.svc.EndGame(ctx, tb.room.ID, tb.host))
	assert.Equal(t, []models.EventType{models.EventGameEnded}, f.pub.types())

	_, err = f.svc.GetRoom(tb.room.ID)
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))
	_, err = f.svc.GetRoomByCode(tb.room.Code)
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))
	_, err = f.store.LoadRoom(ctx, tb.room.ID)
	assert.Equal(t, persistence.ErrRecordNotFound, err)
	assert.Equal(t, 0, f.metrics.rooms)
}

func TestPersistenceFailureRejectsAction(t *testing.T) {
	store := &failingStore{MemoryStore: persistence.NewMemoryStore(), allowed: 1}
	pub := &fakePublisher{}
	opts := DefaultOptions()
	opts.Source = zeroSource{}
	svc := NewGameService(store, pub, nil, opts)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Alice")
	require.NoError(t, err)
	pub.reset()

	_, _, err = svc.JoinRoom(ctx, room.Code, "Bob")
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))

	snap, err := svc.GetRoom(room.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1, "an unsaved mutation must not commit")
	assert.Empty(t, pub.types())
}

func TestGetRoomByCodeAndList(t *testing.T) {
	f := newFixture(t)
	first, _ := f.lobby(t, "Bob")
	f.clock.Advance(time.Second)
	second, _ := f.lobby(t)

	got, err := f.svc.GetRoomByCode(" " + first.Code + " ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	list := f.svc.ListRooms()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 2, list[0].PlayerCount)
	assert.Equal(t, "Alice", list[0].HostName)
	assert.Equal(t, second.ID, list[1].ID)

	_, err = f.svc.GetRoom("")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestReapIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale, _ := f.lobby(t)
	f.clock.Advance(90 * time.Minute)
	fresh, _ := f.lobby(t)
	f.clock.Advance(45 * time.Minute)

	assert.Equal(t, 1, f.svc.ReapIdle(ctx, 2*time.Hour))
	_, err := f.svc.GetRoom(stale.ID)
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))
	_, err = f.svc.GetRoom(fresh.ID)
	assert.NoError(t, err)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tb := f.started(t)

	restarted := NewGameService(f.store, nil, nil, DefaultOptions())
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := restarted.GetRoomByCode(tb.room.Code)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseNight, got.Phase)

	// play continues against the restored version
	_, err = restarted.SubmitNightAction(ctx, tb.room.ID, tb.mafia, state.MafiaKill{TargetID: tb.b})
	assert.NoError(t, err)
}

func TestConcurrentJoinsAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, _ := f.lobby(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := f.svc.JoinRoom(ctx, room.Code, fmt.Sprintf("player-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := f.svc.GetRoom(room.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 21)
	assert.Equal(t, int64(21), snap.Version)

	stored, err := f.store.LoadRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Version, stored.Version)
}

// gatedPublisher records published versions and, once armed, holds the next
// Publish until the gate opens.
type gatedPublisher struct {
	mutex    sync.Mutex
	versions []int64
	gate     chan struct{}
	entered  chan struct{}
}

func (p *gatedPublisher) arm() chan struct{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.gate = make(chan struct{})
	p.entered = make(chan struct{})
	return p.gate
}

func (p *gatedPublisher) Publish(room *models.Room, events []models.Event) {
	p.mutex.Lock()
	gate, entered := p.gate, p.entered
	p.gate = nil
	p.mutex.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	p.mutex.Lock()
	p.versions = append(p.versions, room.Version)
	p.mutex.Unlock()
}

func TestPublishFollowsCommitOrder(t *testing.T) {
	pub := &gatedPublisher{}
	opts := DefaultOptions()
	opts.Source = zeroSource{}
	svc := NewGameService(nil, pub, nil, opts)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, "Alice")
	require.NoError(t, err)

	gate := pub.arm()
	entered := pub.entered
	first := make(chan error, 1)
	go func() {
		_, _, err := svc.JoinRoom(ctx, room.Code, "Bob")
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, _, err := svc.JoinRoom(ctx, room.Code, "Carol")
		second <- err
	}()
	// give the second join every chance to overtake the held publish
	time.Sleep(50 * time.Millisecond)
	close(gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	snap, err := svc.GetRoom(room.ID)
	require.NoError(t, err)
	pub.mutex.Lock()
	defer pub.mutex.Unlock()
	assert.Equal(t, []int64{1, 2, 3}, pub.versions)
	assert.Equal(t, snap.Version, pub.versions[len(pub.versions)-1], "the last delivered update is the committed one")
}

func TestSubscribeSeesCommittedState(t *testing.T) {
	f := newFixture(t)
	room, _ := f.lobby(t, "Bob")

	registered := false
	var seen *models.Room
	err := f.svc.Subscribe(room.ID, func() { registered = true }, func(current *models.Room) {
		seen = current
	})
	require.NoError(t, err)
	assert.True(t, registered)
	require.NotNil(t, seen)
	assert.Equal(t, room.Version, seen.Version)
	assert.Len(t, seen.Players, 2)

	err = f.svc.Subscribe("missing", func() { t.Error("register must not run for an unknown room") }, func(*models.Room) {})
	assert.True(t, errors.Is(err, errs.ErrRoomNotFound))
}
