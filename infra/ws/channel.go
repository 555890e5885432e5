// Package ws implements the live activity channel over a WebSocket feed.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/lastmile/core/ingest"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/model"
)

const (
	writeWait   = 10 * time.Second
	readLimit   = 64 << 10
	eventBuffer = 64
)

// Config defines the WebSocket endpoint of the activity feed.
type Config struct {
	URL            string        `json:"url"`
	PongWait       time.Duration `json:"pong_wait"`
	PingPeriod     time.Duration `json:"ping_period"`
	HandshakeLimit time.Duration `json:"handshake_timeout"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PongWait == 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod == 0 {
		c.PingPeriod = c.PongWait / 2
	}
	if c.HandshakeLimit == 0 {
		c.HandshakeLimit = 10 * time.Second
	}
}

// Validate checks the configuration after defaults were applied.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("ws url is required")
	}
	if c.PingPeriod >= c.PongWait {
		return errors.New("ws ping period must be shorter than pong wait")
	}
	return nil
}

// Channel dials the activity feed with a bearer token.
type Channel struct {
	cfg    Config
	dialer *websocket.Dialer
	log    logger.Logger
}

// NewChannel validates cfg and returns a Channel.
func NewChannel(cfg Config, log logger.Logger) (*Channel, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = cfg.HandshakeLimit
	return &Channel{cfg: cfg, dialer: &d, log: log}, nil
}

func (c *Channel) Name() string { return "ws" }

// Subscribe dials the feed. A read error ends the subscription and closes
// the Events channel.
func (c *Channel) Subscribe(ctx context.Context, token string) (ingest.Subscription, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", c.cfg.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	s := &subscription{
		conn:   conn,
		events: make(chan model.ActivityEvent, eventBuffer),
		done:   make(chan struct{}),
		cfg:    c.cfg,
		log:    c.log,
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

type subscription struct {
	conn   *websocket.Conn
	events chan model.ActivityEvent
	done   chan struct{}
	cfg    Config
	log    logger.Logger

	writeMu sync.Mutex
	once    sync.Once
	wg      sync.WaitGroup
}

func (s *subscription) Events() <-chan model.ActivityEvent { return s.events }

// Status is nil: a WebSocket has no temporary link loss, only closure.
func (s *subscription) Status() <-chan ingest.LinkStatus { return nil }

func (s *subscription) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warnf("ws read: %v", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ev, err := ingest.DecodeEvent(data)
		if err != nil {
			s.log.Warnf("drop ws message: %v", err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.log.Debugf("ws ping: %v", err)
				return
			}
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}
