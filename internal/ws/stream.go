// Package ws streams trace hits to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/metrics"
)

const (
	writeTimeout   = 10 * time.Second
	wsReadLimit    = 4096
	pingInterval   = 30 * time.Second
	pingTimeout    = 10 * time.Second
	maxMissedPongs = int32(2)
)

// Session streams one trace over one websocket connection.
type Session struct {
	conn *websocket.Conn
	stop context.CancelFunc
	log  logrus.FieldLogger
}

// NewSession creates a Session. stop cancels the trace's context and is
// called when the peer closes the connection or stops answering pings.
func NewSession(conn *websocket.Conn, stop context.CancelFunc, log logrus.FieldLogger) *Session {
	return &Session{conn: conn, stop: stop, log: log}
}

// Run writes a start frame, one frame per hit and a closing done or error
// frame, then closes the connection. It returns the first write error, or
// nil when the trace was delivered or the peer went away.
func (s *Session) Run(ctx context.Context, stream domain.TraceStream) error {
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()
	defer stream.Close()
	defer s.conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	s.conn.SetReadLimit(wsReadLimit)

	// Clients never send data frames; CloseRead handles control frames and
	// cancels peerCtx once the peer closes.
	peerCtx := s.conn.CloseRead(ctx)
	stopWatch := context.AfterFunc(peerCtx, s.stop)
	defer stopWatch()

	go s.keepAlive(peerCtx)

	start := stream.Start()
	if err := s.write(peerCtx, Message{Type: TypeStart, Start: &start}); err != nil {
		return s.writeFailed(peerCtx, err)
	}

	n := 0

	for hit, err := range stream.Hits() {
		if err != nil {
			if peerCtx.Err() != nil {
				return nil
			}

			s.log.WithError(err).Warn("websocket trace failed")

			if werr := s.write(peerCtx, Message{Type: TypeError, Error: err.Error()}); werr != nil {
				return s.writeFailed(peerCtx, werr)
			}

			s.conn.Close(websocket.StatusInternalError, "trace failed") //nolint:errcheck // best-effort

			return nil
		}

		if err := s.write(peerCtx, Message{Type: TypeHit, Hit: &hit}); err != nil {
			return s.writeFailed(peerCtx, err)
		}

		n++
	}

	stats := stream.Stats()
	done := Message{Type: TypeDone, Hits: n, Truncated: stream.Truncated(), Stats: &stats}

	if err := s.write(peerCtx, done); err != nil {
		return s.writeFailed(peerCtx, err)
	}

	s.conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // best-effort

	return nil
}

func (s *Session) write(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

// writeFailed drops errors caused by the peer leaving.
func (s *Session) writeFailed(peerCtx context.Context, err error) error {
	if peerCtx.Err() != nil || errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
		s.log.WithError(err).Debug("websocket peer went away")
		return nil
	}

	return fmt.Errorf("writing websocket message: %w", err)
}

// keepAlive pings the peer until ctx ends. Two consecutive missed pongs stop
// the trace.
func (s *Session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var missedPongs atomic.Int32

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.sendPing(ctx, &missedPongs) {
				s.stop()
				return
			}
		}
	}
}

// sendPing sends a ping and tracks missed pongs. It returns true when the
// connection should be abandoned.
func (s *Session) sendPing(ctx context.Context, missedPongs *atomic.Int32) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := s.conn.Ping(pingCtx)
	cancel()

	if err != nil {
		if missedPongs.Add(1) >= maxMissedPongs {
			s.log.Debug("closing: 2 consecutive missed pongs")
			return true
		}

		return false
	}

	missedPongs.Store(0)

	return false
}
