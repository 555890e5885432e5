package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `live:
  transport: "mqtt"
  credentials_url: "https://backend/api/realtime/token"
  mqtt:
    broker: "tcp://localhost:1883"
    client_id: "dispatch"
    topic: "orders/activity"
sync:
  snapshot_url: "https://backend/api/orders"
  poll_interval_seconds: 15
fare:
  settings_file: "/etc/lastmile/fare.yaml"
  autosave: true
  surge_policy: "compound"
metrics:
  sinks:
    - type: "nop"
http:
  addr: ":9000"
logging:
  level: "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"transport", cfg.Live.Transport, "mqtt"},
		{"broker", cfg.Live.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.Live.MQTT.ClientID, "dispatch"},
		{"qos", cfg.Live.MQTT.QoS, byte(1)},
		{"credentials_url", cfg.Live.CredentialsURL, "https://backend/api/realtime/token"},
		{"snapshot_url", cfg.Sync.SnapshotURL, "https://backend/api/orders"},
		{"poll_interval", cfg.Sync.Ingest().PollInterval, 15 * time.Second},
		{"connect_timeout", cfg.Sync.Ingest().ConnectTimeout, 10 * time.Second},
		{"dedup_size", cfg.Sync.DedupSize, 100},
		{"settings_file", cfg.Fare.SettingsFile, "/etc/lastmile/fare.yaml"},
		{"autosave", cfg.Fare.Autosave, true},
		{"surge_policy", cfg.Fare.SurgePolicy, "compound"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"http.addr", cfg.HTTP.Addr, ":9000"},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"live":{"transport":"ws","ws":{"url":"wss://backend/feed"}},"sync":{"snapshot_url":"http://b/orders"}}`)
	t.Setenv("K_SYNC__POLL_INTERVAL_SECONDS", "3")
	t.Setenv("K_HTTP__ADDR", ":7070")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Sync.PollIntervalSeconds != 3 {
		t.Errorf("poll interval override not applied: %d", cfg.Sync.PollIntervalSeconds)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("http addr override not applied: %s", cfg.HTTP.Addr)
	}
	if cfg.Live.WS.Channel().URL != "wss://backend/feed" {
		t.Errorf("ws url: %s", cfg.Live.WS.URL)
	}
	if cfg.Fare.SettingsFile != "fare.yaml" || cfg.Logging.Level != "info" {
		t.Errorf("defaults not applied: %+v %+v", cfg.Fare, cfg.Logging)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct{ name, data string }{
		{"live: missing broker", "sync: {snapshot_url: \"http://b\"}"},
		{"sync: snapshot_url", "live: {transport: none}"},
		{"live: unknown", "live: {transport: carrier-pigeon}\nsync: {snapshot_url: \"http://b\"}"},
		{"fare: unknown surge", "live: {transport: none}\nsync: {snapshot_url: \"http://b\"}\nfare: {surge_policy: sum}"},
		{"logging: invalid", "live: {transport: none}\nsync: {snapshot_url: \"http://b\"}\nlogging: {level: loud}"},
		{"sync: poll", "live: {transport: none}\nsync: {snapshot_url: \"http://b\", poll_interval_seconds: -1}"},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, "c.yaml", c.data))
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		section := strings.SplitN(c.name, ":", 2)[0]
		if !strings.HasPrefix(err.Error(), section+":") {
			t.Errorf("%s: error %q not attributed to section", c.name, err)
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("expected error")
	}
}
