package logicalurl

import (
	"testing"

	"github.com/nevermined-io/payments-sub002"
)

func TestBuildTool(t *testing.T) {
	got := Build(x402.KindTool, "srv", "weather", map[string]string{"city": "London"})
	want := "mcp://srv/tools/weather?city=London"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildResourceAlwaysPluralized(t *testing.T) {
	got := Build(x402.KindResource, "srv", "report", nil)
	want := "mcp://srv/resources/report"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildMeta(t *testing.T) {
	got := BuildMeta("srv", "initialize")
	want := "mcp://srv/meta/initialize"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestArgOrderIsStable(t *testing.T) {
	a := map[string]string{"b": "2", "a": "1", "c": "3"}
	b := map[string]string{"c": "3", "a": "1", "b": "2"}

	got1 := Build(x402.KindTool, "srv", "n", a)
	got2 := Build(x402.KindTool, "srv", "n", b)
	if got1 != got2 {
		t.Errorf("expected reordered args to produce identical URLs: %q vs %q", got1, got2)
	}
	want := "mcp://srv/tools/n?a=1&b=2&c=3"
	if got1 != want {
		t.Errorf("got %q, want %q", got1, want)
	}
}
