// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/mafiaserver/models"
)

// pq error code for unique_violation
const uniqueViolation = "23505"

// PostgreSQL 数据库实现，房间整体以 JSONB 快照存储
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS mafia_rooms (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(64) UNIQUE NOT NULL,
            code VARCHAR(16) UNIQUE NOT NULL,
            phase VARCHAR(16) NOT NULL,
            winner VARCHAR(16) NOT NULL,
            version BIGINT NOT NULL,
            snapshot JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_mafia_rooms_created_at ON mafia_rooms(created_at);
    `)
	return err
}

// SaveRoom 保存房间状态。首个版本插入，之后的版本按上一版本做条件更新。
func (p *PostgreSQL) SaveRoom(ctx context.Context, room *models.Room) error {
	snapshot, err := json.Marshal(room)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if room.Version == 1 {
		query := `
            INSERT INTO mafia_rooms (room_id, code, phase, winner, version, snapshot, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `
		_, err = p.db.ExecContext(ctx, query, room.ID, room.Code, string(room.Phase), string(room.Winner),
			room.Version, snapshot, room.CreatedAt, room.UpdatedAt)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return versionConflict(room, p.storedVersion(ctx, room.ID))
		}
		return err
	}

	query := `
        UPDATE mafia_rooms
        SET phase = $3, winner = $4, version = $5, snapshot = $6, updated_at = $7
        WHERE room_id = $1 AND version = $2
    `
	result, err := p.db.ExecContext(ctx, query, room.ID, room.Version-1, string(room.Phase), string(room.Winner),
		room.Version, snapshot, room.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return versionConflict(room, p.storedVersion(ctx, room.ID))
	}
	return nil
}

// storedVersion is best effort, only used to explain a conflict.
func (p *PostgreSQL) storedVersion(ctx context.Context, roomID string) int64 {
	var version int64
	_ = p.db.QueryRowContext(ctx, `SELECT version FROM mafia_rooms WHERE room_id = $1`, roomID).Scan(&version)
	return version
}

// LoadRoom 加载房间状态
func (p *PostgreSQL) LoadRoom(ctx context.Context, roomID string) (*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var data []byte
	query := `SELECT snapshot FROM mafia_rooms WHERE room_id = $1`
	err := p.db.QueryRowContext(ctx, query, roomID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}

// DeleteRoom 删除房间
func (p *PostgreSQL) DeleteRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM mafia_rooms WHERE room_id = $1`, roomID)
	return err
}

// ListRooms 加载全部房间，按创建时间排序
func (p *PostgreSQL) ListRooms(ctx context.Context) ([]*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT room_id, snapshot FROM mafia_rooms ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		var (
			roomID string
			data   []byte
		)
		if err := rows.Scan(&roomID, &data); err != nil {
			return nil, err
		}
		var room models.Room
		if err := json.Unmarshal(data, &room); err != nil {
			return nil, fmt.Errorf("decode room %s: %w", roomID, err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
