package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	mu       sync.Mutex
	received []any
	failNext bool
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNext {
		return errors.New("broken pipe")
	}
	c.received = append(c.received, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestHub_Broadcast_AllClientsReceive(t *testing.T) {
	hub := NewHub(nil)

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		hub.Register(c)
	}

	hub.Broadcast(map[string]any{"type": "new_documents"})

	for i, c := range conns {
		if c.count() != 1 {
			t.Fatalf("conn %d: expected 1 message, got %d", i, c.count())
		}
	}
}

func TestHub_Broadcast_FailingClientIsIsolatedAndDropped(t *testing.T) {
	hub := NewHub(nil)

	healthy1 := &fakeConn{}
	broken := &fakeConn{failNext: true}
	healthy2 := &fakeConn{}

	hub.Register(healthy1)
	hub.Register(broken)
	hub.Register(healthy2)

	hub.Broadcast(map[string]any{"type": "new_documents"})

	if healthy1.count() != 1 || healthy2.count() != 1 {
		t.Fatalf("healthy clients must still receive: got %d and %d",
			healthy1.count(), healthy2.count())
	}
	if hub.Count() != 2 {
		t.Fatalf("expected broken client dropped, count=%d", hub.Count())
	}
	if !broken.closed {
		t.Fatalf("expected broken client closed")
	}

	// El caído no debe recibir broadcasts posteriores.
	broken.failNext = false
	hub.Broadcast(map[string]any{"type": "new_documents"})
	if broken.count() != 0 {
		t.Fatalf("dropped client must not receive, got %d", broken.count())
	}
	if healthy1.count() != 2 {
		t.Fatalf("expected 2 messages on healthy client, got %d", healthy1.count())
	}
}

// overlapConn detecta escrituras solapadas sobre la misma conexión
// (gorilla admite un solo writer concurrente; dos a la vez es panic).
type overlapConn struct {
	inWrite  atomic.Int32
	overlaps atomic.Int32
}

func (c *overlapConn) WriteJSON(v any) error {
	if c.inWrite.Add(1) > 1 {
		c.overlaps.Add(1)
	}
	time.Sleep(time.Millisecond)
	c.inWrite.Add(-1)
	return nil
}

func (c *overlapConn) Close() error { return nil }

func TestHub_BroadcastAndHandlerWritesAreSerialized(t *testing.T) {
	raw := &overlapConn{}
	cl := newClient(raw)

	hub := NewHub(nil)
	hub.Register(cl)

	// Mismo patrón que en producción: el hub escribe desde el runner y
	// el loop del handler contesta pongs por la misma conexión.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Broadcast(map[string]any{"type": "new_documents"})
		}()
		go func() {
			defer wg.Done()
			_ = cl.WriteJSON(map[string]any{"type": "pong"})
		}()
	}
	wg.Wait()

	if n := raw.overlaps.Load(); n != 0 {
		t.Fatalf("expected serialized writes, got %d overlapping writes", n)
	}
}

func TestHub_ConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	hub := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			hub.Register(c)
			hub.Broadcast(map[string]any{"type": "ping"})
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if hub.Count() != 0 {
		t.Fatalf("expected empty hub, count=%d", hub.Count())
	}
}
