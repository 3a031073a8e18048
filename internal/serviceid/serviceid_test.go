package serviceid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bmetallica/netcatalog/internal/probe"
)

func TestIdentify_HTTPTitleWins(t *testing.T) {
	result := probe.Result{
		HTTP: &probe.HTTPResult{
			Extracted: probe.Extracted{Title: "Grafana - Dashboards"},
			Headers:   map[string]string{"server": "nginx"},
		},
	}
	id := Identify(3000, result, ScannerHint{})
	assert.Equal(t, "Grafana", id.IdentifiedAs)
	assert.Equal(t, "title", id.MatchSource)
}

func TestIdentify_BodyPatternBeatsServerHeader(t *testing.T) {
	result := probe.Result{
		HTTP: &probe.HTTPResult{
			Extracted: probe.Extracted{Patterns: []string{"portainer"}},
			Headers:   map[string]string{"server": "nginx"},
		},
	}
	id := Identify(9000, result, ScannerHint{})
	assert.Equal(t, "Portainer", id.IdentifiedAs)
	assert.Equal(t, "body-pattern", id.MatchSource)
	assert.NotEmpty(t, id.Icon, "a known application pattern match should carry an icon hint")
}

func TestIdentify_ServerHeaderFallback(t *testing.T) {
	result := probe.Result{
		HTTP: &probe.HTTPResult{Headers: map[string]string{"server": "nginx/1.25"}},
	}
	id := Identify(80, result, ScannerHint{})
	assert.Equal(t, "nginx", id.IdentifiedAs)
	assert.Equal(t, "server-header", id.MatchSource)
}

func TestIdentify_BannerIdentified(t *testing.T) {
	result := probe.Result{
		Banner: &probe.BannerResult{
			Text:       "SSH-2.0-OpenSSH_8.9",
			Identified: "OpenSSH",
			Product:    "OpenSSH",
			Version:    "8.9",
		},
	}
	id := Identify(22, result, ScannerHint{})
	assert.Equal(t, "OpenSSH", id.IdentifiedAs)
	assert.Equal(t, "OpenSSH", id.Product)
	assert.Equal(t, "banner-identified", id.MatchSource)
}

func TestIdentify_RawBannerWhenUnrecognized(t *testing.T) {
	result := probe.Result{Banner: &probe.BannerResult{Text: "some unknown greeting string here"}}
	id := Identify(12345, result, ScannerHint{})
	assert.Contains(t, id.IdentifiedAs, "Unknown (Banner:")
	assert.Equal(t, "raw-banner", id.MatchSource)
}

func TestIdentify_PortFallback(t *testing.T) {
	id := Identify(22, probe.Result{}, ScannerHint{})
	assert.Equal(t, "port-fallback", id.MatchSource)
}

func TestIdentify_ScannerHintBeatsDefault(t *testing.T) {
	id := Identify(54321, probe.Result{}, ScannerHint{Product: "Tailscale", Version: "1.66"})
	assert.Equal(t, "scanner-hint", id.MatchSource)
	assert.Equal(t, "Tailscale", id.IdentifiedAs)
	assert.Equal(t, "Tailscale", id.Product)
	assert.Equal(t, "1.66", id.Version)
}

func TestIdentify_ScannerHintFallsBackToName(t *testing.T) {
	id := Identify(54321, probe.Result{}, ScannerHint{Name: "unknown-svc"})
	assert.Equal(t, "scanner-hint", id.MatchSource)
	assert.Equal(t, "unknown-svc", id.IdentifiedAs)
}

func TestIdentify_DefaultUnknown(t *testing.T) {
	id := Identify(54321, probe.Result{}, ScannerHint{})
	assert.Equal(t, "default", id.MatchSource)
	assert.Contains(t, id.IdentifiedAs, "54321")
}
