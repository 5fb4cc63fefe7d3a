// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormRoom 房间持久化模型，整个聚合以 jsonb 存储
type GormRoom struct {
	gorm.Model
	RoomID   string `gorm:"uniqueIndex;not null"`
	Code     string `gorm:"uniqueIndex;not null"`
	Phase    string `gorm:"not null"`
	Winner   string `gorm:"not null;default:none"`
	Version  int64  `gorm:"not null;default:0"`
	Snapshot string `gorm:"type:jsonb;not null"`
	ActiveAt time.Time
}
