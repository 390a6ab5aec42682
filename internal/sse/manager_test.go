package sse

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = m.Shutdown(context.Background())
	})
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e := <-c.EventChan:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_ConnectDisconnect(t *testing.T) {
	m := NewManager(testLogger())

	c, err := m.Connect()
	require.NoError(t, err)
	assert.Contains(t, c.ID, "sse-")
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-c.Done
	assert.False(t, open)

	m.Disconnect(c.ID)
	m.Disconnect("unknown")
}

func TestManager_BroadcastsToAllClients(t *testing.T) {
	m := startManager(t)

	a, err := m.Connect()
	require.NoError(t, err)
	b, err := m.Connect()
	require.NoError(t, err)

	n := &domain.Notification{ID: "ntf-1", Message: "beach.jpg was uploaded.", Generation: "1"}
	m.Emit(NewNotificationCreatedEvent(n))

	for _, c := range []*Client{a, b} {
		e := receive(t, c)
		assert.Equal(t, EventNotificationCreated, e.Type)
		assert.Equal(t, n, e.Data)
	}
}

func TestManager_DropsForSlowClient(t *testing.T) {
	m := NewManager(testLogger())
	c, err := m.Connect()
	require.NoError(t, err)

	for range cap(c.EventChan) + 5 {
		m.broadcast(NewThumbnailDeletedEvent("k", "n"))
	}
	assert.Len(t, c.EventChan, cap(c.EventChan))
}

func TestManager_Heartbeat(t *testing.T) {
	m := NewManager(testLogger())
	m.heartbeatInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	c, err := m.Connect()
	require.NoError(t, err)
	assert.Equal(t, EventHeartbeat, receive(t, c).Type)
}

func TestManager_ShutdownDrainsAndCloses(t *testing.T) {
	m := NewManager(testLogger())
	c, err := m.Connect()
	require.NoError(t, err)

	m.Emit(NewThumbnailDeletedEvent("beach1.jpg", "beach.jpg"))
	require.NoError(t, m.Shutdown(context.Background()))

	e, ok := <-c.EventChan
	require.True(t, ok)
	assert.Equal(t, EventThumbnailDeleted, e.Type)

	_, ok = <-c.EventChan
	assert.False(t, ok)
	assert.Equal(t, 0, m.ClientCount())

	// Emit and Shutdown after shutdown are no-ops.
	m.Emit(NewHeartbeatEvent())
	require.NoError(t, m.Shutdown(context.Background()))
}
