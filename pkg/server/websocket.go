package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/docker/briefing/pkg/stream"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// streamReportWS runs one report over a WebSocket. The client sends a single
// ReportRequest message and receives one JSON event per message, graph_end
// last, after which the server closes the connection. Closing the socket
// early cancels the run.
func (s *Server) streamReportWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug("WebSocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	var body ReportRequest
	decodeErr := conn.ReadJSON(&body)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.runReport(ctx, body, decodeErr, wsSink{conn: conn})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
	return nil
}

type wsSink struct {
	conn *websocket.Conn
}

func (w wsSink) Send(ev stream.ExternalEvent) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(ev)
}
