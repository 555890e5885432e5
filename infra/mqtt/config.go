package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config defines the connection parameters of the MQTT live channel.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	// Username is sent with the short-lived token as password. It defaults to
	// the client id.
	Username     string      `json:"username"`
	Topic        string      `json:"topic"`
	QoS          byte        `json:"qos"`
	KeepAliveSec int         `json:"keepalive_seconds"`
	UseTLS       bool        `json:"use_tls"`
	ClientCert   string      `json:"client_cert"`
	ClientKey    string      `json:"client_key"`
	CABundle     string      `json:"ca_bundle"`
	TLSConfig    *tls.Config `json:"-"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "lastmile-dispatch"
	}
	if c.Topic == "" {
		c.Topic = "orders/activity"
	}
	if c.KeepAliveSec == 0 {
		c.KeepAliveSec = 30
	}
}

// Validate checks the configuration after defaults were applied.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos %d out of range", c.QoS)
	}
	return nil
}

// NewClientOptions builds paho options for one connection. Each connection
// gets a unique client id so stale sessions never collide.
func NewClientOptions(cfg Config, token string) (*paho.ClientOptions, error) {
	clientID := cfg.ClientID + "-" + uuid.NewString()[:8]
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	opts.CleanSession = true
	if cfg.KeepAliveSec > 0 {
		opts.SetKeepAlive(time.Duration(cfg.KeepAliveSec) * time.Second)
	}
	if token != "" {
		user := cfg.Username
		if user == "" {
			user = cfg.ClientID
		}
		opts.SetUsername(user)
		opts.SetPassword(token)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
// The client certificate is optional; the CA bundle is not.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires ca_bundle")
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificates in %s", c.CABundle)
	}
	cfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	if c.ClientCert != "" || c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
