package chart

import (
	"strings"
	"testing"

	"github.com/kilianp07/lastmile/core/fare"
)

func TestFareCurveHTML(t *testing.T) {
	html, err := FareCurveHTML(fare.Defaults(), 30, 5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Fare by distance", "bike", "van", "6000"} {
		if !strings.Contains(html, want) {
			t.Fatalf("chart missing %q", want)
		}
	}
}

func TestFareCurveHTMLRejectsRange(t *testing.T) {
	if _, err := FareCurveHTML(fare.Defaults(), 10, 0); err == nil {
		t.Fatalf("expected error for zero step")
	}
	if _, err := FareCurveHTML(fare.Defaults(), 1, 5); err == nil {
		t.Fatalf("expected error for max below step")
	}
}
