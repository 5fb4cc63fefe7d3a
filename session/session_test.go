package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/mafiaserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mutex  sync.Mutex
	sent   []uint16
	block  chan struct{}
	closed bool
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	if m.block != nil {
		<-m.block
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) sentCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.sent)
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{}, 0)
	defer sess.Close()

	// Test Add
	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	// Test Get
	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	// Test Remove
	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByRoom(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", &MockConnection{}, 0)
	sess1.RoomID, sess1.PlayerID = "room-a", "p1"
	sess2 := NewSession("session2", &MockConnection{}, 0)
	sess2.RoomID, sess2.PlayerID = "room-b", "p2"
	sess3 := NewSession("session3", &MockConnection{}, 0)
	sess3.RoomID, sess3.PlayerID = "room-a", "p3"

	for _, s := range []*Session{sess1, sess2, sess3} {
		manager.Add(s)
		defer s.Close()
	}

	if got := len(manager.GetByRoom("room-a")); got != 2 {
		t.Errorf("Expected 2 sessions for room-a, got %d", got)
	}
	if got := len(manager.GetByRoom("room-c")); got != 0 {
		t.Errorf("Expected 0 sessions for room-c, got %d", got)
	}
	if got := manager.GetByRoom("room-b"); len(got) != 1 || got[0] != sess2 {
		t.Error("GetByRoom should find session2")
	}
}

func TestSession_SendIsDelivered(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("s", conn, 4)
	defer sess.Close()

	if err := sess.Send(network.MsgTypeStateUpdated, []byte("{}")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for conn.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.sentCount() != 1 {
		t.Fatal("queued packet was never written")
	}
}

func TestSession_SlowClientDoesNotBlock(t *testing.T) {
	conn := &MockConnection{block: make(chan struct{})}
	sess := NewSession("slow", conn, 1)

	var full bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			if sess.Send(network.MsgTypeStateUpdated, nil) == ErrSendQueueFull {
				full = true
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a slow connection")
	}
	if !full {
		t.Error("Expected ErrSendQueueFull once the queue filled up")
	}

	close(conn.block)
	sess.Close()
	if err := sess.Send(network.MsgTypeStateUpdated, nil); err != ErrSessionClosed {
		t.Errorf("Expected ErrSessionClosed after Close, got %v", err)
	}
}

func TestSession_CloseAfterFlush(t *testing.T) {
	conn := &MockConnection{}
	sess := NewSession("flush", conn, 8)

	sess.Send(network.MsgTypePlayerKilled, nil)
	sess.Send(network.MsgTypeGameEnded, nil)
	sess.CloseAfterFlush()

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session never closed")
	}
	if conn.sentCount() != 2 {
		t.Errorf("Expected both queued packets to be written before closing, got %d", conn.sentCount())
	}
}
