package api

import (
	"errors"
	"syscall"

	"github.com/gofiber/contrib/websocket"

	customlog "github.com/open-teleop/simbridge/pkg/log"
)

// CycleSource streams JSON-encoded cycle summaries.
type CycleSource interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

// CycleStreamHandler pushes every cycle summary to the client as a text
// frame until the exchange stops or the client goes away.
func CycleStreamHandler(conn *websocket.Conn, source CycleSource, logger customlog.Logger) {
	logger.Infof("Cycle stream connected: %s", conn.RemoteAddr())
	cycles, cancel := source.Subscribe(64)
	defer cancel()

	// Reader goroutine notices client closes; this stream is write-only.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-cycles:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "exchange stopped"))
				logger.Infof("Cycle stream finished: %s", conn.RemoteAddr())
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || err == websocket.ErrCloseSent {
					logger.Infof("Cycle stream closed by client: %s", conn.RemoteAddr())
				} else {
					logger.Warnf("Cycle stream write error: %v", err)
				}
				return
			}
		case <-closed:
			logger.Infof("Cycle stream disconnected: %s", conn.RemoteAddr())
			return
		}
	}
}
