// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/models"
)

// Store 房间存储接口，按房间ID读写。
//
// SaveRoom is an optimistic write: room.Version must be exactly one more than
// the stored version (a missing room counts as version 0), otherwise the write
// is rejected with errs.ErrConflict and nothing is stored.
type Store interface {
	SaveRoom(ctx context.Context, room *models.Room) error
	LoadRoom(ctx context.Context, roomID string) (*models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	ListRooms(ctx context.Context) ([]*models.Room, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

func versionConflict(room *models.Room, stored int64) error {
	return errs.New(errs.ErrConflict, "room %s is at version %d, cannot write version %d", room.Code, stored, room.Version)
}
