package ws_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/abhilashshingan/collaborative-editor/internal/ws"
)

const testDocID = "doc1"

// mockConn is a test double for ws.Conn, used by the hub tests.
type mockConn struct {
	mu       sync.Mutex
	messages []ws.Frame
	closed   bool

	incoming chan ws.Frame
}

func newMockConn() *mockConn {
	return &mockConn{
		messages: make([]ws.Frame, 0),
		incoming: make(chan ws.Frame, 10),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var frame ws.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}

	m.messages = append(m.messages, frame)

	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	frame := <-m.incoming

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockConn) Messages() []ws.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ws.Frame, len(m.messages))
	copy(result, m.messages)

	return result
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func TestHub_RegisterUnregister(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	hub.Register(client)

	if hub.TotalClients() != 1 {
		t.Errorf("expected 1 client, got %d", hub.TotalClients())
	}

	hub.Unregister(client)

	if hub.TotalClients() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.TotalClients())
	}
}

func TestHub_Subscribe(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	hub.Register(client)
	hub.Subscribe(client, testDocID)

	if hub.ClientCount(testDocID) != 1 {
		t.Errorf("expected 1 client on doc1, got %d", hub.ClientCount(testDocID))
	}

	if client.DocID() != testDocID {
		t.Errorf("expected client docID doc1, got %s", client.DocID())
	}
}

func TestHub_Subscribe_SwitchesDocument(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	hub.Register(client)
	hub.Subscribe(client, testDocID)
	hub.Subscribe(client, "doc2")

	if hub.ClientCount(testDocID) != 0 {
		t.Errorf("expected 0 clients on doc1, got %d", hub.ClientCount(testDocID))
	}

	if hub.ClientCount("doc2") != 1 {
		t.Errorf("expected 1 client on doc2, got %d", hub.ClientCount("doc2"))
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	hub.Register(client)
	hub.Subscribe(client, testDocID)
	hub.Unsubscribe(client, testDocID)

	if hub.ClientCount(testDocID) != 0 {
		t.Errorf("expected 0 clients on doc1, got %d", hub.ClientCount(testDocID))
	}

	if client.DocID() != "" {
		t.Errorf("expected empty docID, got %s", client.DocID())
	}
}

func TestHub_Unregister_CleansUpSubscription(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()
	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	hub.Register(client)
	hub.Subscribe(client, testDocID)
	hub.Unregister(client)

	if hub.ClientCount(testDocID) != 0 {
		t.Errorf("expected 0 clients on doc1 after unregister, got %d", hub.ClientCount(testDocID))
	}
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	conn1 := newMockConn()
	conn2 := newMockConn()
	conn3 := newMockConn()

	client1 := ws.NewClient("c1", "user1", conn1)
	client2 := ws.NewClient("c2", "user2", conn2)
	client3 := ws.NewClient("c3", "user3", conn3)

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	hub.Subscribe(client1, testDocID)
	hub.Subscribe(client2, testDocID)
	hub.Subscribe(client3, "doc2") // different document

	frame := ws.Frame{Type: ws.TypeEditApply, DocumentID: testDocID}

	// Broadcast to doc1, excluding client1 (the sender).
	hub.Broadcast(testDocID, frame, "c1")

	// Give goroutines time to send.
	time.Sleep(10 * time.Millisecond)

	// client1 should NOT receive (excluded).
	if len(conn1.Messages()) != 0 {
		t.Errorf("client1 should not receive broadcast, got %d messages", len(conn1.Messages()))
	}

	// client2 should receive.
	if len(conn2.Messages()) != 1 {
		t.Errorf("client2 should receive 1 message, got %d", len(conn2.Messages()))
	}

	// client3 should NOT receive (different document).
	if len(conn3.Messages()) != 0 {
		t.Errorf("client3 should not receive (different doc), got %d messages", len(conn3.Messages()))
	}
}

func TestHub_MultipleDocuments(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	conn1 := newMockConn()
	conn2 := newMockConn()

	client1 := ws.NewClient("c1", "user1", conn1)
	client2 := ws.NewClient("c2", "user2", conn2)

	hub.Register(client1)
	hub.Register(client2)

	hub.Subscribe(client1, testDocID)
	hub.Subscribe(client2, "doc2")

	if hub.ClientCount(testDocID) != 1 {
		t.Errorf("expected 1 client on doc1, got %d", hub.ClientCount(testDocID))
	}

	if hub.ClientCount("doc2") != 1 {
		t.Errorf("expected 1 client on doc2, got %d", hub.ClientCount("doc2"))
	}

	if hub.TotalClients() != 2 {
		t.Errorf("expected 2 total clients, got %d", hub.TotalClients())
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			conn := newMockConn()
			client := ws.NewClient(string(rune('a'+n)), "user", conn)

			hub.Register(client)
			hub.Subscribe(client, testDocID)
		}(i)
	}

	wg.Wait()

	if hub.ClientCount(testDocID) != 20 {
		t.Errorf("expected 20 clients on doc1, got %d", hub.ClientCount(testDocID))
	}
}

func TestHub_Broadcast_NoSubscribers(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	// Broadcast to a document with no subscribers - should not panic.
	hub.Broadcast("nonexistent", ws.Frame{Type: ws.TypeEditApply}, "")
}

func TestHub_Broadcast_ExcludesSender(t *testing.T) {
	t.Parallel()

	hub := ws.NewHub()

	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	hub.Register(client)
	hub.Subscribe(client, testDocID)

	conn2 := newMockConn()
	client2 := ws.NewClient("c2", "user2", conn2)

	hub.Register(client2)
	hub.Subscribe(client2, testDocID)

	// Broadcast excluding c2 - c2 should not receive, c1 should.
	hub.Broadcast(testDocID, ws.Frame{Type: ws.TypeEditApply}, "c2")

	time.Sleep(10 * time.Millisecond)

	if len(conn2.Messages()) != 0 {
		t.Errorf("excluded client should not receive, got %d messages", len(conn2.Messages()))
	}

	if len(conn.Messages()) != 1 {
		t.Errorf("expected 1 message for non-excluded client, got %d", len(conn.Messages()))
	}
}

func TestHub_ImplementsBroadcaster(t *testing.T) {
	t.Parallel()

	var _ ws.Broadcaster = ws.NewHub()
}
