package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/lastmile/infra/auth"
	"github.com/kilianp07/lastmile/infra/httpapi"
	"github.com/kilianp07/lastmile/infra/mqtt"
	"github.com/kilianp07/lastmile/infra/ws"
)

// Live channel transports.
const (
	TransportMQTT = "mqtt"
	TransportWS   = "ws"
	TransportNone = "none"
)

// LiveConfig selects and configures the real-time channel.
type LiveConfig struct {
	// Transport is "mqtt", "ws" or "none". With "none" the ingest only polls.
	Transport      string      `json:"transport"`
	MQTT           mqtt.Config `json:"mqtt"`
	WS             WSConfig    `json:"ws"`
	CredentialsURL string      `json:"credentials_url"`
	APIKey         string      `json:"api_key"`
	// OAuth takes precedence over CredentialsURL when a token URL is set.
	OAuth auth.Conf `json:"oauth"`
}

// WSConfig configures the WebSocket transport.
type WSConfig struct {
	URL               string `json:"url"`
	PongWaitSeconds   int    `json:"pong_wait_seconds"`
	PingPeriodSeconds int    `json:"ping_period_seconds"`
}

// Channel returns the ws package config.
func (c WSConfig) Channel() ws.Config {
	return ws.Config{
		URL:        c.URL,
		PongWait:   time.Duration(c.PongWaitSeconds) * time.Second,
		PingPeriod: time.Duration(c.PingPeriodSeconds) * time.Second,
	}
}

// SetDefaults applies sane defaults.
func (c *LiveConfig) SetDefaults() {
	if c.Transport == "" {
		c.Transport = TransportMQTT
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "orders/activity"
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = 1
	}
}

// Validate checks the transport specific fields.
func (c LiveConfig) Validate() error {
	switch c.Transport {
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
	case TransportWS:
		if c.WS.URL == "" {
			return fmt.Errorf("ws.url is required")
		}
	case TransportNone:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.OAuth.Enabled() && c.OAuth.ClientID == "" {
		return fmt.Errorf("oauth.client_id is required with oauth.token_url")
	}
	return nil
}

// HTTPClient returns the backend client config for the credential exchange.
func (c LiveConfig) HTTPClient(s SyncConfig) httpapi.Config {
	return httpapi.Config{
		CredentialsURL: c.CredentialsURL,
		SnapshotURL:    s.SnapshotURL,
		APIKey:         c.APIKey,
		Timeout:        time.Duration(s.FetchTimeoutSeconds) * time.Second,
	}
}
