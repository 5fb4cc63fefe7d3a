// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/mafiaserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRoom{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func toGormRoom(room *models.Room) (*models.GormRoom, error) {
	snapshot, err := json.Marshal(room)
	if err != nil {
		return nil, err
	}
	return &models.GormRoom{
		RoomID:   room.ID,
		Code:     room.Code,
		Phase:    string(room.Phase),
		Winner:   string(room.Winner),
		Version:  room.Version,
		Snapshot: string(snapshot),
		ActiveAt: room.UpdatedAt,
	}, nil
}

func fromGormRoom(row *models.GormRoom) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal([]byte(row.Snapshot), &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", row.RoomID, err)
	}
	return &room, nil
}

// SaveRoom 保存房间状态，在事务中做版本校验
func (p *GormPostgreSQL) SaveRoom(ctx context.Context, room *models.Room) error {
	row, err := toGormRoom(room)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.GormRoom
		result := tx.Where("room_id = ?", room.ID).First(&current)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if room.Version != 1 {
				return versionConflict(room, 0)
			}
			// 创建新记录
			return tx.Create(row).Error
		} else if result.Error != nil {
			return result.Error
		}

		if current.Version != room.Version-1 {
			return versionConflict(room, current.Version)
		}

		// 更新现有记录，条件带上版本号防止并发覆盖
		update := tx.Model(&models.GormRoom{}).
			Where("room_id = ? AND version = ?", room.ID, current.Version).
			Updates(map[string]interface{}{
				"phase":     row.Phase,
				"winner":    row.Winner,
				"version":   row.Version,
				"snapshot":  row.Snapshot,
				"active_at": row.ActiveAt,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return versionConflict(room, current.Version)
		}
		return nil
	})
}

// LoadRoom 加载房间状态
func (p *GormPostgreSQL) LoadRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var row models.GormRoom
	if err := p.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return fromGormRoom(&row)
}

// DeleteRoom 物理删除，释放加入码的唯一索引
func (p *GormPostgreSQL) DeleteRoom(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Unscoped().Where("room_id = ?", roomID).Delete(&models.GormRoom{}).Error
}

// ListRooms 加载全部房间
func (p *GormPostgreSQL) ListRooms(ctx context.Context) ([]*models.Room, error) {
	var rows []models.GormRoom
	if err := p.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	rooms := make([]*models.Room, 0, len(rows))
	for i := range rows {
		room, err := fromGormRoom(&rows[i])
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
