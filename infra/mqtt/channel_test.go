package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/lastmile/core/ingest"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	tlsCfg, err := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 || tlsCfg.RootCAs == nil {
		t.Fatalf("tls config incomplete")
	}

	tlsCfg, err = Config{UseTLS: true, CABundle: ca}.LoadTLSConfig()
	if err != nil {
		t.Fatalf("ca only: %v", err)
	}
	if len(tlsCfg.Certificates) != 0 {
		t.Fatalf("unexpected client cert")
	}

	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without ca bundle")
	}
}

func TestNewClientOptionsToken(t *testing.T) {
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "dispatch"}
	opts, err := NewClientOptions(cfg, "short-lived")
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "dispatch" || opts.Password != "short-lived" {
		t.Fatalf("token auth not set: %q/%q", opts.Username, opts.Password)
	}
	if !strings.HasPrefix(opts.ClientID, "dispatch-") {
		t.Fatalf("client id %q", opts.ClientID)
	}
	again, _ := NewClientOptions(cfg, "")
	if again.ClientID == opts.ClientID {
		t.Fatalf("client ids must be unique per connection")
	}
	if again.Password != "" {
		t.Fatalf("password set without token")
	}
}

func TestNewChannelValidation(t *testing.T) {
	if _, err := NewChannel(Config{}, nil); err == nil {
		t.Fatalf("expected error without broker")
	}
	if _, err := NewChannel(Config{Broker: "tcp://x:1883", QoS: 3}, nil); err == nil {
		t.Fatalf("expected qos error")
	}
}

func TestSubscribeDeliversEvents(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	ch, err := NewChannel(Config{Broker: "tcp://localhost:1883", Topic: "orders/activity", QoS: 1}, nil)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	sub, err := ch.Subscribe(context.Background(), "tok")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if len(mc.subscribed) != 1 || mc.subscribed[0].topic != "orders/activity" || mc.subscribed[0].qos != 1 {
		t.Fatalf("unexpected subscriptions %+v", mc.subscribed)
	}
	if mc.opts.Password != "tok" {
		t.Fatalf("token not used as password")
	}
	if st := <-sub.Status(); st != ingest.LinkUp {
		t.Fatalf("expected link up, got %v", st)
	}

	mc.deliver(mockMessage{p: []byte(`not json`)})
	mc.deliver(mockMessage{p: []byte(`{"id":"e1","order_id":"o1","event_type":"picked_up"}`)})
	select {
	case ev := <-sub.Events():
		if ev.ID != "e1" || ev.Type != "picked_up" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestConnectionLostReportsLinkDown(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	ch, _ := NewChannel(Config{Broker: "tcp://localhost:1883"}, nil)
	sub, err := ch.Subscribe(context.Background(), "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	mc.opts.OnConnectionLost(mc, errors.New("eof"))
	if st := <-sub.Status(); st != ingest.LinkDown {
		t.Fatalf("expected the latest status to be down, got %v", st)
	}
	mc.opts.OnConnect(mc)
	if st := <-sub.Status(); st != ingest.LinkUp {
		t.Fatalf("expected link up after reconnect, got %v", st)
	}
}

func TestSubscribeConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("not authorized")}
	useMock(t, mc)
	ch, _ := NewChannel(Config{Broker: "tcp://localhost:1883"}, nil)
	if _, err := ch.Subscribe(context.Background(), "bad"); err == nil || !strings.Contains(err.Error(), "not authorized") {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestSubscribeContextCanceled(t *testing.T) {
	mc := &mockClient{pending: true}
	useMock(t, mc)
	ch, _ := NewChannel(Config{Broker: "tcp://localhost:1883"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ch.Subscribe(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !mc.disconnected {
		t.Fatalf("client not disconnected after timeout")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	ch, _ := NewChannel(Config{Broker: "tcp://localhost:1883"}, nil)
	sub, err := ch.Subscribe(context.Background(), "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = sub.Close()
	_ = sub.Close()
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("events channel still open")
	}
	mc.deliver(mockMessage{p: []byte(`{"id":"e1","order_id":"o1","event_type":"assigned"}`)})
	if !mc.disconnected {
		t.Fatalf("client not disconnected")
	}
}

// mockClient implements paho.Client for tests
type mockClient struct {
	mu         sync.Mutex
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	handler      paho.MessageHandler
	connectErr   error
	pending      bool
	disconnected bool
}

func (m *mockClient) deliver(msg paho.Message) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(m, msg)
	}
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.pending {
		return &dummyToken{pending: true}
	}
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(string, byte, bool, interface{}) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	m.mu.Lock()
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	m.handler = cb
	m.mu.Unlock()
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return !m.disconnected }

type dummyToken struct {
	err     error
	pending bool
}

func (d dummyToken) Wait() bool                     { return !d.pending }
func (d dummyToken) WaitTimeout(time.Duration) bool { return !d.pending }
func (d dummyToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !d.pending {
		close(ch)
	}
	return ch
}
func (d dummyToken) Error() error { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "orders/activity" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
