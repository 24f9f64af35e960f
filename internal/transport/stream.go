package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"listenlink/internal/calls"
)

// StreamFrame is the wire frame shared with the API.
type StreamFrame = calls.StreamFrame

const (
	FramePending    = calls.FramePending
	FrameInvitation = calls.FrameInvitation
)

// Stream receives invitation updates over a WebSocket instead of polling.
type Stream struct {
	url            string
	token          string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         *slog.Logger
}

// NewStream builds a stream for the API at baseURL (http or https).
func NewStream(baseURL, token string, logger *slog.Logger) *Stream {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		url:            u + "/v1/calls/stream",
		token:          token,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		reconnectDelay: 3 * time.Second,
		logger:         logger.With("subsystem", "invitation-stream"),
	}
}

// Run connects and delivers frames to fn until ctx is cancelled, reconnecting
// after a fixed delay when the connection drops.
func (s *Stream) Run(ctx context.Context, fn func(StreamFrame)) error {
	for {
		err := s.runOnce(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		s.logger.Warn("invitation stream disconnected", "err", err, "retry_in", s.reconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Stream) runOnce(ctx context.Context, fn func(StreamFrame)) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("transport: dialing stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var frame StreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		fn(frame)
	}
}
