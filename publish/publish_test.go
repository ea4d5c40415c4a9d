package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OriD-19/perf_overlay/aggregator"
	"github.com/OriD-19/perf_overlay/logger"
)

func testReport(end time.Time) *aggregator.WindowReport {
	return &aggregator.WindowReport{
		Metrics:     aggregator.DisplayMetrics{CPUMs: 2, GPUMs: 3, FPS: 1000.0 / 3},
		WindowStart: end.Add(-500 * time.Millisecond),
		WindowEnd:   end,
		SampleCount: 5,
		MinFrameMs:  3,
		MaxFrameMs:  3,
		P50FrameMs:  3,
		P95FrameMs:  3,
		P99FrameMs:  3,
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Publish(context.Background(), testReport(time.Unix(10, 0))))

	entries := logs.FilterMessage("window closed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, 2.0, fields["cpu_ms"])
	assert.Equal(t, int64(5), fields["samples"])
	assert.Equal(t, 500*time.Millisecond, fields["window"])
}

func TestLogSinkUsesContextLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zap.InfoLevel)
	scopedCore, scopedLogs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(fallbackCore))

	ctx := logger.WithContext(context.Background(), zap.New(scopedCore).With(zap.String("agent_id", "scene-1")))
	require.NoError(t, sink.Publish(ctx, testReport(time.Unix(10, 0))))

	assert.Zero(t, fallbackLogs.Len())
	entries := scopedLogs.FilterMessage("window closed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "scene-1", entries[0].ContextMap()["agent_id"])
}

func TestSQLiteRoundTrip(t *testing.T) {
	store, err := NewSQLite(filepath.Join(t.TempDir(), "reports.db"), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)
	for _, sec := range []int{3, 1, 2} {
		r := testReport(base.Add(time.Duration(sec) * time.Second))
		r.AgentID = "agent"
		r.SampleCount = sec
		require.NoError(t, store.Publish(ctx, r))
	}

	got, err := store.Query(ctx, base, base.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].SampleCount)
	assert.Equal(t, 2, got[1].SampleCount)
	assert.True(t, got[0].WindowEnd.Equal(base.Add(time.Second)))
	assert.Equal(t, "agent", got[0].AgentID)
	assert.InDelta(t, 1000.0/3, got[0].Metrics.FPS, 1e-9)

	all, err := store.Query(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func newReportServer(t *testing.T, received chan<- aggregator.WindowReport) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var report aggregator.WindowReport
			if err := json.Unmarshal(msg, &report); err == nil {
				received <- report
			}
			if err := conn.WriteJSON(map[string]string{"status": "received"}); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketClientPublish(t *testing.T) {
	received := make(chan aggregator.WindowReport, 1)
	srv := newReportServer(t, received)

	client := NewWebSocketClient("ws"+strings.TrimPrefix(srv.URL, "http"), "agent-1", zap.NewNop())
	require.NoError(t, client.Connect())
	defer client.Close()
	assert.True(t, client.IsConnected())

	report := testReport(time.Unix(20, 0))
	require.NoError(t, client.Publish(context.Background(), report))
	assert.Empty(t, report.AgentID, "caller's report must not be modified")

	select {
	case got := <-received:
		assert.Equal(t, "agent-1", got.AgentID)
		assert.Equal(t, 5, got.SampleCount)
		assert.InDelta(t, 3.0, got.Metrics.GPUMs, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("report not delivered")
	}

	client.Disconnect()
	assert.False(t, client.IsConnected())
}

func TestWebSocketClientDropsWhenFull(t *testing.T) {
	client := NewWebSocketClient("ws://127.0.0.1:0", "agent", zap.NewNop())

	ctx := context.Background()
	for range cap(client.sendChannel) {
		require.NoError(t, client.Publish(ctx, testReport(time.Unix(1, 0))))
	}
	assert.ErrorIs(t, client.Publish(ctx, testReport(time.Unix(1, 0))), ErrQueueFull)
	assert.NoError(t, client.Publish(ctx, nil))
}

func TestWebSocketClientConnectError(t *testing.T) {
	client := NewWebSocketClient("ws://127.0.0.1:1/monitoring", "agent", zap.NewNop())
	assert.Error(t, client.Connect())
	assert.False(t, client.IsConnected())
}
