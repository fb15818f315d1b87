// Package telemetry exposes the filter's estimate over a WebSocket live feed,
// a polling HTTP query API, and Prometheus metrics.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Clearance levels gate how much of a Sample a client receives.
const (
	ClearancePublic   = 0
	ClearanceOperator = 1
	ClearanceAdmin    = 2
)

// Sample is one filter estimate, broadcast to every connected client.
type Sample struct {
	Timestamp time.Time  `json:"timestamp"`
	Position  [3]float64 `json:"position"`
	Velocity  [3]float64 `json:"velocity"`
	Euler     [3]float64 `json:"euler"`
	Clearance int        `json:"-"`

	// Operator-and-above fields.
	GyroBias  [3]float64 `json:"gyro_bias,omitempty"`
	AccelBias [3]float64 `json:"accel_bias,omitempty"`

	// Admin-only diagnostics.
	PositionVariance [3]float64 `json:"position_variance,omitempty"`
	DegradedAttitude bool       `json:"degraded_attitude,omitempty"`
}

// Stream broadcasts Samples to connected WebSocket clients, each filtered to
// what their clearance permits.
type Stream struct {
	mu        sync.RWMutex
	clients   map[*client]bool
	broadcast chan *Sample
	upgrader  websocket.Upgrader
	logger    *logrus.Logger
	authority *Authority

	messagesSent  uint64
	clientsServed uint64
}

type client struct {
	conn      *websocket.Conn
	clearance int
	send      chan *Sample
	id        string
}

// NewStream builds a Stream. authority may be nil, in which case every
// client is given ClearancePublic regardless of bearer token.
func NewStream(logger *logrus.Logger, authority *Authority) *Stream {
	if logger == nil {
		logger = logrus.New()
	}
	return &Stream{
		clients:   make(map[*client]bool),
		broadcast: make(chan *Sample, 256),
		authority: authority,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades an HTTP request to a streaming WebSocket
// connection. The caller's bearer token, if any, determines its clearance.
func (s *Stream) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("telemetry: websocket upgrade failed")
		return
	}

	clearance := ClearancePublic
	if s.authority != nil {
		if tok := bearerToken(r); tok != "" {
			if claims, err := s.authority.Verify(tok); err == nil {
				clearance = claims.Clearance
			}
		}
	}

	c := &client{conn: conn, clearance: clearance, send: make(chan *Sample, 50), id: r.RemoteAddr}
	s.register(c)
	s.logger.WithFields(logrus.Fields{"client": c.id, "clearance": clearance}).Info("telemetry: client connected")

	ctx, cancel := context.WithCancel(context.Background())
	go s.writePump(ctx, c)
	go s.readPump(ctx, cancel, c)
}

func (s *Stream) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = true
	s.clientsServed++
}

func (s *Stream) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
		s.logger.WithField("client", c.id).Info("telemetry: client disconnected")
	}
}

// Publish enqueues a sample for broadcast, dropping the oldest queued sample
// if the broadcast channel is saturated.
func (s *Stream) Publish(sample *Sample) {
	select {
	case s.broadcast <- sample:
	default:
		select {
		case <-s.broadcast:
		default:
		}
		s.broadcast <- sample
	}
}

// Run drains the broadcast channel and fans samples out to clients until ctx
// is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	s.logger.Info("telemetry: stream started")
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return ctx.Err()
		case sample := <-s.broadcast:
			s.fanOut(sample)
		}
	}
}

func (s *Stream) fanOut(sample *Sample) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.clearance < sample.Clearance {
			continue
		}
		filtered := filterForClearance(sample, c.clearance)
		select {
		case c.send <- filtered:
			s.messagesSent++
		default:
		}
	}
}

func filterForClearance(sample *Sample, clearance int) *Sample {
	out := *sample
	if clearance < ClearanceOperator {
		out.GyroBias = [3]float64{}
		out.AccelBias = [3]float64{}
	}
	if clearance < ClearanceAdmin {
		out.PositionVariance = [3]float64{}
		out.DegradedAttitude = false
	}
	return &out
}

func (s *Stream) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Stream) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readPump(ctx context.Context, cancel context.CancelFunc, c *client) {
	defer func() {
		cancel()
		s.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Warn("telemetry: websocket read error")
			}
			return
		}
	}
}

// Stats reports current connection counts, for the metrics package.
func (s *Stream) Stats() (clients int, sent, served uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), s.messagesSent, s.clientsServed
}
