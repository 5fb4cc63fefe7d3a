// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/mafiaserver/network"
)

// DefaultQueueSize 每个会话的发送队列长度
const DefaultQueueSize = 64

var (
	ErrSendQueueFull = errors.New("session send queue is full")
	ErrSessionClosed = errors.New("session is closed")
)

type outbound struct {
	msgID uint16
	data  []byte
	last  bool // 写完队列中之前的消息后关闭
}

// Session 一个订阅房间的连接。发送只入队，由单独的写协程写出，
// 慢客户端不会阻塞调用方。
type Session struct {
	ID        string
	Conn      network.Connection
	PlayerID  string
	RoomID    string
	CreatedAt time.Time

	queue     chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(id string, conn network.Connection, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Session{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
		queue:     make(chan outbound, queueSize),
		done:      make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Send 非阻塞发送，队列满时丢弃并返回 ErrSendQueueFull
func (s *Session) Send(msgID uint16, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.queue <- outbound{msgID: msgID, data: data}:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case msg := <-s.queue:
			if msg.last {
				s.Close()
				return
			}
			if err := s.Conn.Send(msg.msgID, msg.data); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// CloseAfterFlush closes the session once everything queued before it has
// been written. With a full queue it closes immediately.
func (s *Session) CloseAfterFlush() {
	select {
	case s.queue <- outbound{last: true}:
	default:
		s.Close()
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.Conn.Close()
	})
	return err
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByRoom returns the sessions subscribed to roomID.
func (m *Manager) GetByRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomID == roomID {
			result = append(result, session)
		}
	}
	return result
}

// Count 当前在线会话数
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
