// Package mqtt implements the live activity channel on top of Eclipse Paho.
package mqtt

import (
	"context"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/lastmile/core/ingest"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/model"
)

const eventBuffer = 64

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Channel subscribes to the order activity topic.
type Channel struct {
	cfg Config
	log logger.Logger
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
	return &Channel{cfg: cfg, log: log}, nil
}

func (c *Channel) Name() string { return "mqtt" }

// Subscribe connects with token as the MQTT password. The topic is
// (re)subscribed on every connect; connection loss and recovery are reported
// on the Status channel.
func (c *Channel) Subscribe(ctx context.Context, token string) (ingest.Subscription, error) {
	opts, err := NewClientOptions(c.cfg, token)
	if err != nil {
		return nil, err
	}
	sub := &subscription{
		events: make(chan model.ActivityEvent, eventBuffer),
		status: make(chan ingest.LinkStatus, 1),
		done:   make(chan struct{}),
		log:    c.log,
	}
	opts.OnConnect = func(cl paho.Client) {
		if tok := cl.Subscribe(c.cfg.Topic, c.cfg.QoS, sub.onMessage); tok.Wait() && tok.Error() != nil {
			c.log.Errorf("subscribe %s: %v", c.cfg.Topic, tok.Error())
			return
		}
		c.log.Infof("subscribed to %s", c.cfg.Topic)
		sub.link(ingest.LinkUp)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Warnf("connection lost: %v", err)
		sub.link(ingest.LinkDown)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		c.log.Debugf("reconnecting to %s", c.cfg.Broker)
	}

	cli := newMQTTClient(opts)
	tok := cli.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		cli.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.cfg.Broker, err)
	}
	sub.cli = cli
	return sub, nil
}

type subscription struct {
	cli    pahoClient
	events chan model.ActivityEvent
	status chan ingest.LinkStatus
	done   chan struct{}
	log    logger.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func (s *subscription) Events() <-chan model.ActivityEvent { return s.events }
func (s *subscription) Status() <-chan ingest.LinkStatus   { return s.status }

func (s *subscription) onMessage(_ paho.Client, msg paho.Message) {
	ev, err := ingest.DecodeEvent(msg.Payload())
	if err != nil {
		s.log.Warnf("drop message on %s: %v", msg.Topic(), err)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// link publishes the latest link status, replacing one not yet consumed.
func (s *subscription) link(st ingest.LinkStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.status <- st:
			return
		default:
			select {
			case <-s.status:
			default:
			}
		}
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.cli != nil && s.cli.IsConnected() {
			s.cli.Disconnect(250)
		}
		s.mu.Lock()
		s.closed = true
		close(s.events)
		close(s.status)
		s.mu.Unlock()
	})
	return nil
}
