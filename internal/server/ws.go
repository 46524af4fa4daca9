// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fpx-io/fpx/internal/events"
)

// WebSocketIDHeader carries a random per-session id in the upgrade response
// to aid debugging.
const WebSocketIDHeader = "fpx-websocket-id"

// replyQueueSize bounds the session-local reply channel so a stalled writer
// never blocks the reader.
const replyQueueSize = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service binds to loopback; cross-origin browser clients are the
	// expected consumers.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWebSocket handles GET /ws. Non-upgrade requests get 426.
func (h *APIHandler) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		h.writeError(w, http.StatusUpgradeRequired, "upgradeRequired")
		return
	}

	sessionID := rand.Uint32()
	header := http.Header{}
	header.Set(WebSocketIDHeader, strconv.FormatUint(uint64(sessionID), 10))

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		conn:    conn,
		sub:     h.bus.Subscribe(),
		replies: make(chan events.ServerMessage, replyQueueSize),
		logger:  h.logger.With(zap.Uint32("websocket_id", sessionID)),
	}
	sess.run(r.Context())
}

// session bridges the bus to one connected client. The reader loop parses
// inbound frames and queues acks; the writer loop multiplexes those replies
// with bus broadcasts, giving replies priority so they are never starved.
type session struct {
	conn    *websocket.Conn
	sub     *events.Subscriber
	replies chan events.ServerMessage
	logger  *zap.Logger
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.sub.Close()
	defer s.conn.Close()

	s.logger.Debug("WebSocket session started")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.writeLoop(ctx)
	}()

	// Unblock a pending read when the writer stops first (bus closed on
	// shutdown, or a write error).
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	s.readLoop(ctx)
	cancel()
	<-writerDone
	s.logger.Debug("WebSocket session ended")
}

func (s *session) readLoop(ctx context.Context) {
	defer s.recoverPanic("reader")
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				ctx.Err() == nil {
				s.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}
		switch messageType {
		case websocket.TextMessage:
			s.handleClientMessage(data)
		case websocket.BinaryMessage:
			s.logger.Debug("Ignoring binary WebSocket frame", zap.Int("size", len(data)))
		}
	}
}

// handleClientMessage answers every parseable frame with an ack and every
// broken one with an in-band error; a parse failure never closes the
// session.
func (s *session) handleClientMessage(data []byte) {
	var msg events.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.MessageID == "" {
		s.enqueueReply(events.NewErrorMessage(nil, events.ErrorInvalidMessage))
		return
	}
	s.enqueueReply(events.NewAckMessage(msg.MessageID))
}

func (s *session) enqueueReply(msg events.ServerMessage) {
	select {
	case s.replies <- msg:
	default:
		s.logger.Warn("Dropping reply, session reply queue is full")
	}
}

func (s *session) writeLoop(ctx context.Context) {
	defer s.recoverPanic("writer")

	broadcast := make(chan events.ServerMessage)
	go func() {
		defer s.recoverPanic("bus pump")
		defer close(broadcast)
		s.pumpBus(ctx, broadcast)
	}()

	for {
		// Drain pending replies first so acks are not starved by a busy
		// broadcast stream.
		select {
		case msg := <-s.replies:
			if !s.write(msg) {
				return
			}
			continue
		default:
		}

		select {
		case msg := <-s.replies:
			if !s.write(msg) {
				return
			}
		case msg, ok := <-broadcast:
			if !ok {
				return
			}
			if !s.write(msg) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// pumpBus forwards bus messages to the writer. Lag is logged and swallowed:
// the client cannot recover dropped notifications, the loss is explicit.
func (s *session) pumpBus(ctx context.Context, broadcast chan<- events.ServerMessage) {
	for {
		msg, err := s.sub.Recv(ctx)
		if err != nil {
			var lagErr *events.LagError
			if errors.As(err, &lagErr) {
				s.logger.Warn("WebSocket client lagging behind",
					zap.Uint64("missed", lagErr.Missed))
				continue
			}
			return
		}
		select {
		case broadcast <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) write(msg events.ServerMessage) bool {
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug("WebSocket write failed", zap.Error(err))
		return false
	}
	return true
}

// recoverPanic keeps a panicking session from taking down the process.
func (s *session) recoverPanic(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("Panic in WebSocket session",
			zap.String("loop", loop), zap.Any("panic", r))
		s.conn.Close()
	}
}
