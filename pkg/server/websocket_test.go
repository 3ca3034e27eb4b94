package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/briefing/pkg/agent/agenttest"
	"github.com/docker/briefing/pkg/session"
	"github.com/docker/briefing/pkg/stream"
)

func dialReports(t *testing.T, rt *Runtime) (*websocket.Conn, *session.MemoryStore) {
	t.Helper()

	sessions := session.NewMemoryStore()
	srv, err := New(rt, sessions, WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.DialContext(t.Context(), "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/reports/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, sessions
}

func readEvents(t *testing.T, conn *websocket.Conn) []stream.ExternalEvent {
	t.Helper()

	var events []stream.ExternalEvent
	for {
		var ev stream.ExternalEvent
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return events
		}
		events = append(events, ev)
	}
}

func TestServer_WebSocketReport(t *testing.T) {
	t.Parallel()

	conn, sessions := dialReports(t, newRuntime(t, agenttest.Reply("data"), agenttest.Reply("# Report")))
	require.NoError(t, conn.WriteJSON(ReportRequest{Topic: "Player A", ThreadID: "ws-1"}))

	events := readEvents(t, conn)
	require.NotEmpty(t, events)
	assert.Equal(t, "ws-1", events[0].SessionID)
	assert.Equal(t, stream.TypeGraphEnd, events[len(events)-1].Type)
	assert.Equal(t, stream.TypeFinalAnswer, events[len(events)-2].Type)
	assert.Equal(t, "# Report", events[len(events)-2].Data["content"])

	sess, err := sessions.Get(t.Context(), "ws-1")
	require.NoError(t, err)
	assert.Len(t, sess.Runs, 1)
}

func TestServer_WebSocketMalformedRequest(t *testing.T) {
	t.Parallel()

	conn, _ := dialReports(t, newRuntime(t, agenttest.Reply("data"), agenttest.Reply("report")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))

	events := readEvents(t, conn)
	require.Len(t, events, 2)
	assert.Equal(t, stream.TypeError, events[0].Type)
	assert.Equal(t, "validation_error", events[0].Data["type"])
	assert.Equal(t, stream.TypeGraphEnd, events[1].Type)
}
