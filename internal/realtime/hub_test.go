package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePusher struct {
	payloads [][]byte
	err      error
}

func (p *capturePusher) Push(payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestHubRegisterIgnoresInvalidUser(t *testing.T) {
	hub := NewHub(zap.NewNop())

	hub.Register(0, &capturePusher{})
	hub.Register(-3, &capturePusher{})
	hub.Register(1, nil)

	assert.Empty(t, hub.OnlineUsers())
}

func TestHubReRegisterReplaces(t *testing.T) {
	hub := NewHub(zap.NewNop())
	first := &capturePusher{}
	second := &capturePusher{}

	hub.Register(1, first)
	hub.Register(1, second)

	hub.Notify(1, Event{Type: "notification", Data: "hello"})
	assert.Empty(t, first.payloads)
	require.Len(t, second.payloads, 1)
	assert.Equal(t, []int64{1}, hub.OnlineUsers())
}

func TestHubUnregisterMatchesHandle(t *testing.T) {
	hub := NewHub(zap.NewNop())
	stale := &capturePusher{}
	current := &capturePusher{}

	hub.Register(1, stale)
	hub.Register(1, current)

	// The replaced connection must not evict its successor.
	hub.Unregister(stale)
	assert.True(t, hub.Online(1))

	hub.Unregister(current)
	assert.False(t, hub.Online(1))
}

func TestHubNotifyOfflineIsNoOp(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Notify(42, Event{Type: "notification", Data: "ignored"})
}

func TestHubNotifyEnvelope(t *testing.T) {
	hub := NewHub(zap.NewNop())
	p := &capturePusher{}
	hub.Register(7, p)

	hub.Notify(7, Event{Type: "notification", Data: map[string]int{"id": 3}})
	require.Len(t, p.payloads, 1)

	var decoded struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(p.payloads[0], &decoded))
	assert.Equal(t, "notification", decoded.Type)
	assert.Equal(t, 3, decoded.Data["id"])
}

func TestHubNotifyPushErrorKeepsClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	p := &capturePusher{err: errors.New("buffer full")}
	hub.Register(7, p)

	hub.Notify(7, Event{Type: "notification", Data: "x"})
	assert.True(t, hub.Online(7))
}

type countingMetrics struct {
	opened int
	closed int
}

func (m *countingMetrics) ConnectionOpened() { m.opened++ }
func (m *countingMetrics) ConnectionClosed() { m.closed++ }

func TestHubConnectionMetrics(t *testing.T) {
	hub := NewHub(zap.NewNop())
	metrics := &countingMetrics{}
	hub.SetMetrics(metrics)

	first := &capturePusher{}
	second := &capturePusher{}
	hub.Register(1, first)
	// Replacement does not double count the user.
	hub.Register(1, second)
	hub.Register(2, &capturePusher{})

	assert.Equal(t, 2, metrics.opened)

	hub.Unregister(second)
	assert.Equal(t, 1, metrics.closed)
}
