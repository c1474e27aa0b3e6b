package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/observability"
)

// Stream timeouts.
const (
	streamWriteTimeout = 10 * time.Second
	streamPongGrace    = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleChartStream upgrades to WebSocket and pushes a ChartView immediately
// and then every stream interval until the client goes away. Each frame
// advances the rolling window like a poll of /api/charts/live would.
func (s *Server) handleChartStream(w http.ResponseWriter, r *http.Request) {
	symbols, walletBased := s.chartSymbols(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	observability.ChartStreamConnected(1)
	defer observability.ChartStreamConnected(-1)

	log := s.log.WithFields(logrus.Fields{
		"remote":  r.RemoteAddr,
		"symbols": domain.JoinSymbols(symbols, ","),
	})
	log.Debug("chart stream opened")

	pongWait := s.interval + streamPongGrace
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: the client sends nothing meaningful, but reading is required
	// to process control frames and notice disconnects.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		view := s.market.ChartDataset(ctx, symbols, walletBased)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(view); err != nil {
			log.WithError(err).Debug("chart stream write failed")
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			log.Debug("chart stream closed")
			return
		case <-ticker.C:
		}
	}
}
