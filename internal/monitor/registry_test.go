package monitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiongtingping/wenpai-sub001/internal/monitor"
)

func TestRegistry_RejectsDuplicateLiveMonitor(t *testing.T) {
	registry := monitor.NewRegistry()
	gw := &scriptedGateway{responses: []pollResponse{{status: "pending"}}}
	store := newMemStore()
	capture := &eventCapture{}

	first := newTestMonitor(t, "chk_dup", gw, store, capture, monitor.Config{AutoRefresh: true})
	require.NoError(t, registry.Add(first))
	require.NoError(t, first.Start(context.Background()))

	second := newTestMonitor(t, "chk_dup", gw, store, capture, monitor.Config{AutoRefresh: true})
	assert.ErrorIs(t, registry.Add(second), monitor.ErrAlreadyTracked)
}

func TestRegistry_ReplacesFinishedMonitor(t *testing.T) {
	registry := monitor.NewRegistry()
	gw := &scriptedGateway{responses: []pollResponse{{status: "failed"}}}
	store := newMemStore()
	capture := &eventCapture{}

	first := newTestMonitor(t, "chk_replace", gw, store, capture, monitor.Config{AutoRefresh: true})
	require.NoError(t, registry.Add(first))
	require.NoError(t, first.Start(context.Background()))
	awaitDone(t, first)

	second := newTestMonitor(t, "chk_replace", gw, store, capture, monitor.Config{AutoRefresh: true})
	require.NoError(t, registry.Add(second))

	got, ok := registry.Get("chk_replace")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistry_RemoveStopsMonitor(t *testing.T) {
	registry := monitor.NewRegistry()
	gw := &scriptedGateway{responses: []pollResponse{{status: "pending"}}}
	store := newMemStore()
	capture := &eventCapture{}

	m := newTestMonitor(t, "chk_remove", gw, store, capture, monitor.Config{AutoRefresh: true})
	require.NoError(t, registry.Add(m))
	require.NoError(t, m.Start(context.Background()))

	registry.Remove("chk_remove")
	awaitDone(t, m)

	_, ok := registry.Get("chk_remove")
	assert.False(t, ok)
}

func TestRegistry_StopAll(t *testing.T) {
	registry := monitor.NewRegistry()
	store := newMemStore()
	capture := &eventCapture{}

	var monitors []*monitor.Monitor
	for _, id := range []string{"chk_a", "chk_b", "chk_c"} {
		gw := &scriptedGateway{responses: []pollResponse{{status: "pending"}}}
		m := newTestMonitor(t, id, gw, store, capture, monitor.Config{AutoRefresh: true})
		require.NoError(t, registry.Add(m))
		require.NoError(t, m.Start(context.Background()))
		monitors = append(monitors, m)
	}

	assert.Len(t, registry.List(), 3)
	registry.StopAll()
	for _, m := range monitors {
		awaitDone(t, m)
	}

	require.Eventually(t, func() bool {
		for _, m := range registry.List() {
			if !m.Finished() {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)
}
