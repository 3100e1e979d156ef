// Package wsclient subscribes to the server's metrics stream over
// WebSocket and delivers decoded payloads on a channel.
package wsclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
)

const dialTimeout = 10 * time.Second

// Subscriber maintains one WebSocket connection to /api/stream.
type Subscriber struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	payloads chan api.Payload
	errs     chan error
}

// StreamURL converts an HTTP base URL into the matching ws:// stream URL.
func StreamURL(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", fmt.Errorf("parse api url %q: %w", apiBase, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/api/stream"
	u.RawQuery = ""
	return u.String(), nil
}

// Dial connects to the stream endpoint and starts the read loop.
func Dial(ctx context.Context, streamURL string) (*Subscriber, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", streamURL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", streamURL, err)
	}

	s := &Subscriber{
		conn:     conn,
		payloads: make(chan api.Payload, 1),
		errs:     make(chan error, 1),
	}
	go s.readLoop()
	return s, nil
}

// Payloads yields one value per frame the server pushes. The channel is
// closed after Close or a read failure.
func (s *Subscriber) Payloads() <-chan api.Payload { return s.payloads }

// Errs yields the terminal read error, if any.
func (s *Subscriber) Errs() <-chan error { return s.errs }

func (s *Subscriber) readLoop() {
	defer close(s.payloads)
	for {
		var p api.Payload
		if err := s.conn.ReadJSON(&p); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.errs <- fmt.Errorf("read stream: %w", err)
			}
			return
		}
		// Keep only the freshest payload if the consumer is slow.
		select {
		case s.payloads <- p:
		default:
			select {
			case <-s.payloads:
			default:
			}
			s.payloads <- p
		}
	}
}

// Close sends a close frame and tears down the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
