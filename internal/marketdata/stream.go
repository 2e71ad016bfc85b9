package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Stream keeps the latest market snapshot warm from a websocket feed. It
// reconnects with a capped backoff and never blocks consumers: Latest
// returns whatever tick arrived last.
type Stream struct {
	url    string
	logger *zap.Logger

	latest atomic.Pointer[Conditions]
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
}

// NewStream builds a stream for the given websocket URL.
func NewStream(url string, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		url:              url,
		logger:           logger.Named("marketdata-stream"),
		HandshakeTimeout: 10 * time.Second,
	}
}

// Start begins the connect/read loop in the background.
func (s *Stream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop terminates the stream and waits for the read loop to exit.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Latest returns the most recent tick, if any has arrived.
func (s *Stream) Latest() (Conditions, bool) {
	snapshot := s.latest.Load()
	if snapshot == nil {
		return Conditions{}, false
	}
	return *snapshot, true
}

func (s *Stream) run(ctx context.Context) {
	defer s.wg.Done()

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: s.HandshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn("stream connect failed", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		s.read(ctx, conn)
		conn.Close()
	}
}

func (s *Stream) read(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var tick Conditions
		if err := conn.ReadJSON(&tick); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("stream read failed", zap.Error(err))
			}
			return
		}
		s.latest.Store(&tick)
	}
}
