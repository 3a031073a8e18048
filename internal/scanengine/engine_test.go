package scanengine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmetallica/netcatalog/internal/serviceid"
)

func TestSettingOr(t *testing.T) {
	settings := map[string]string{"scan_network": "192.168.1.0/24", "scan_ports": ""}

	assert.Equal(t, "192.168.1.0/24", settingOr(settings, "scan_network", defaultNetwork))
	assert.Equal(t, defaultPorts, settingOr(settings, "scan_ports", defaultPorts), "empty value must fall back, not win")
	assert.Equal(t, defaultPorts, settingOr(settings, "missing_key", defaultPorts))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
	assert.Equal(t, "", firstNonEmpty("", "", ""))
	assert.Equal(t, "first", firstNonEmpty("first", "second"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "clean", sanitize("cl\x00ean"))
	assert.Equal(t, "", sanitize("\x00\x00\x00"))
	assert.Equal(t, "no nulls here", sanitize("no nulls here"))
}

func TestExtraInfoJSON_CarriesMatchSourceStatusCodeAndIcon(t *testing.T) {
	encoded := extraInfoJSON(serviceid.Identity{
		MatchSource: "body-pattern",
		StatusCode:  200,
		Icon:        "grafana",
	})
	require.NotNil(t, encoded)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, "body-pattern", decoded["matchSource"])
	assert.Equal(t, float64(200), decoded["statusCode"])
	assert.Equal(t, "grafana", decoded["icon"])
}
