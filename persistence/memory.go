package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/mafiaserver/models"
)

// MemoryStore keeps rooms in process. Used when no database is configured and in tests.
type MemoryStore struct {
	rooms map[string]*models.Room
	mutex sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*models.Room)}
}

// SaveRoom 保存房间，版本号必须连续
func (s *MemoryStore) SaveRoom(ctx context.Context, room *models.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var stored int64
	if current, ok := s.rooms[room.ID]; ok {
		stored = current.Version
	}
	if room.Version != stored+1 {
		return versionConflict(room, stored)
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

// LoadRoom 加载房间
func (s *MemoryStore) LoadRoom(ctx context.Context, roomID string) (*models.Room, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return room.Clone(), nil
}

// DeleteRoom 删除房间，不存在时不报错
func (s *MemoryStore) DeleteRoom(ctx context.Context, roomID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// ListRooms returns every stored room ordered by creation time.
func (s *MemoryStore) ListRooms(ctx context.Context) ([]*models.Room, error) {
	s.mutex.RLock()
	rooms := make([]*models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	s.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// Close 内存存储无需关闭
func (s *MemoryStore) Close() error {
	return nil
}
