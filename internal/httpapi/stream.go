package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"listenlink/internal/calls"
	"listenlink/internal/invitations"
	"listenlink/pkg/logger"
)

const (
	streamPingInterval = 25 * time.Second
	streamWriteTimeout = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Clients are terminal apps, not browsers; the bearer token is the gate.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamMetrics tracks open streams.
type StreamMetrics interface {
	StreamOpened()
	StreamClosed()
}

// Streamer pushes invitation changes to one user over a WebSocket. It sends
// the pending list on connect and again after every change where the user
// is the receiver, so a client never needs to poll while connected.
type Streamer struct {
	Handlers Handlers
	Hub      *invitations.Hub
	Metrics  StreamMetrics
}

func (s Streamer) Stream(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	log := logger.FromGin(c).With("user_id", uid)

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.Hub.Subscribe(uid)
	defer unsubscribe()
	if s.Metrics != nil {
		s.Metrics.StreamOpened()
		defer s.Metrics.StreamClosed()
	}

	ctx := c.Request.Context()
	write := func(f calls.StreamFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(f)
	}
	sendPending := func() error {
		list, err := s.Handlers.pending(ctx, uid)
		if err != nil {
			return err
		}
		return write(calls.StreamFrame{Type: calls.FramePending, Invitations: list})
	}

	if err := sendPending(); err != nil {
		log.Warn("stream initial frame failed", "err", err)
		return
	}

	// The read side only exists to notice the peer going away and to answer pings.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			log.Debug("stream closed by peer")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case inv, ok := <-updates:
			if !ok {
				return
			}
			if err := write(calls.StreamFrame{Type: calls.FrameInvitation, Invitation: &inv}); err != nil {
				log.Debug("stream write failed", "err", err)
				return
			}
			if inv.ReceiverID == uid {
				if err := sendPending(); err != nil {
					log.Debug("stream write failed", "err", err)
					return
				}
			}
		}
	}
}
