// room/room.go
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
)

// Room 是单个房间状态的唯一所有者。所有修改在写锁内串行执行，
// 读取拿到的是已提交状态的副本，不会看到执行了一半的动作。
type Room struct {
	id        string
	code      string
	createdAt time.Time
	mutex     sync.RWMutex
	state     *models.Room // committed, replaced on every accepted update, never modified in place
	closed    bool
}

// NewRoom wraps an initial room state.
func NewRoom(state *models.Room) *Room {
	return &Room{
		id:        state.ID,
		code:      state.Code,
		createdAt: state.CreatedAt,
		state:     state,
	}
}

// ID 返回房间ID
func (r *Room) ID() string {
	return r.id
}

// Code 返回房间加入码
func (r *Room) Code() string {
	return r.code
}

// Update applies fn to a private copy of the room. The copy replaces the
// committed state only when fn returns nil, so a rejected action leaves the
// room exactly as it was. The returned room is a copy the caller may keep.
func (r *Room) Update(fn func(next *models.Room) error) (*models.Room, error) {
	return r.UpdateThen(fn, nil)
}

// UpdateThen is Update with a hook that runs after the commit but before the
// lock is released, so hooks of successive updates run in commit order.
// onCommit must not block and must not call back into r.
func (r *Room) UpdateThen(fn func(next *models.Room) error, onCommit func(committed *models.Room)) (*models.Room, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil, errs.New(errs.ErrConflict, "room %s was closed while the action was pending", r.code)
	}
	next := r.state.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.state = next
	committed := next.Clone()
	if onCommit != nil {
		onCommit(committed)
	}
	return committed, nil
}

// Read calls fn with a copy of the committed state while holding the read
// lock; no update can commit until fn returns.
func (r *Room) Read(fn func(current *models.Room)) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.closed {
		return errs.New(errs.ErrRoomNotFound, "room %s is closed", r.code)
	}
	fn(r.state.Clone())
	return nil
}

// Snapshot 返回当前已提交状态的副本
func (r *Room) Snapshot() *models.Room {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.state.Clone()
}

// IdleSince reports whether the room has not changed since cutoff.
func (r *Room) IdleSince(cutoff time.Time) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return !r.closed && r.state.UpdatedAt.Before(cutoff)
}

// Closed reports whether the room has been removed from its manager.
func (r *Room) Closed() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.closed
}

// close 标记房间关闭，之后的 Update 都会返回 Conflict
func (r *Room) close() *models.Room {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.closed = true
	return r.state.Clone()
}

// --- 房间管理器 ---

// Manager 管理所有房间，按ID和加入码建立索引
type Manager struct {
	rooms      map[string]*Room // id -> room
	codes      map[string]*Room // code -> room
	codeLength int
	mutex      sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(codeLength int) *Manager {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Manager{
		rooms:      make(map[string]*Room),
		codes:      make(map[string]*Room),
		codeLength: codeLength,
	}
}

// CreateRoom allocates a fresh id and a join code unique among active rooms,
// then registers the room built from them.
func (m *Manager) CreateRoom(build func(id, code string) *models.Room) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := uuid.New().String()
	code := GenerateCode(m.codeLength)
	for m.codes[code] != nil {
		code = GenerateCode(m.codeLength)
	}

	room := NewRoom(build(id, code))
	m.rooms[room.id] = room
	m.codes[room.code] = room
	return room
}

// AddRoom registers an existing room state, used when restoring from a store.
func (m *Manager) AddRoom(state *models.Room) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[state.ID]; exists {
		return nil, errs.New(errs.ErrConflict, "room %s is already registered", state.ID)
	}
	code := NormalizeCode(state.Code)
	if _, exists := m.codes[code]; exists {
		return nil, errs.New(errs.ErrConflict, "join code %s is already in use", code)
	}
	state.Code = code
	room := NewRoom(state)
	m.rooms[room.id] = room
	m.codes[room.code] = room
	return room, nil
}

// RemoveRoom 从管理器中移除并关闭一个房间，返回房间最后的状态
func (m *Manager) RemoveRoom(id string) (*models.Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, false
	}
	delete(m.rooms, id)
	delete(m.codes, room.code)
	return room.close(), true
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// GetRoomByCode looks a room up by its join code, ignoring case and padding.
func (m *Manager) GetRoomByCode(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.codes[NormalizeCode(code)]
	return room, exists
}

// Rooms returns every registered room ordered by creation time.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		ti, tj := rooms[i].createdAt, rooms[j].createdAt
		if ti.Equal(tj) {
			return rooms[i].code < rooms[j].code
		}
		return ti.Before(tj)
	})
	return rooms
}

// IdleRooms returns rooms with no accepted change since cutoff.
func (m *Manager) IdleRooms(cutoff time.Time) []*Room {
	var idle []*Room
	for _, room := range m.Rooms() {
		if room.IdleSince(cutoff) {
			idle = append(idle, room)
		}
	}
	return idle
}

// Count 返回当前房间数量
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
