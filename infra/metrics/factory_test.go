package metrics

import (
	"testing"

	"github.com/kilianp07/lastmile/core/factory"
	coremetrics "github.com/kilianp07/lastmile/core/metrics"
)

func TestBuiltinSinksRegistered(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("nop: %v", err)
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}

	sink, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("fanout: %v", err)
	}
	multi, ok := sink.(*coremetrics.MultiSink)
	if !ok || len(multi.Sinks) != 2 {
		t.Fatalf("expected MultiSink of two, got %T", sink)
	}
	if _, ok := multi.Sinks[0].(*PromSink); !ok {
		t.Fatalf("expected PromSink first, got %T", multi.Sinks[0])
	}
}

func TestInfluxSinkFactoryFallsBack(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": "http://127.0.0.1:1", "token": "t", "org": "o", "bucket": "b"},
	}})
	if err != nil {
		t.Fatalf("influx: %v", err)
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink for unreachable influx, got %T", sink)
	}
}
