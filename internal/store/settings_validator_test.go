package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsValidator_Validate(t *testing.T) {
	v := NewSettingsValidator()

	t.Run("unknown key rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"not_a_real_setting": "x"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown setting")
	})

	t.Run("valid batch accepted", func(t *testing.T) {
		err := v.Validate(map[string]string{
			"scan_network":  "192.168.1.0/24",
			"scan_ports":    "1-1024,8080",
			"scan_interval": "60",
			"scan_enabled":  "true",
		})
		assert.NoError(t, err)
	})

	t.Run("invalid CIDR rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_network": "not-a-cidr"})
		assert.Error(t, err)
	})

	t.Run("IPv6 CIDR rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_network": "2001:db8::/32"})
		assert.Error(t, err)
	})

	t.Run("prefix too wide rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_network": "10.0.0.0/4"})
		assert.Error(t, err)
	})

	t.Run("reversed port range rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_ports": "100-50"})
		assert.Error(t, err)
	})

	t.Run("port out of range rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_ports": "70000"})
		assert.Error(t, err)
	})

	t.Run("interval out of range rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_interval": "5000"})
		assert.Error(t, err)
	})

	t.Run("non-bool rejected", func(t *testing.T) {
		err := v.Validate(map[string]string{"scan_enabled": "yes"})
		assert.Error(t, err)
	})

	t.Run("combined batch reports every offending key", func(t *testing.T) {
		err := v.Validate(map[string]string{
			"scan_network": "garbage",
			"scan_enabled": "nope",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scan_network")
		assert.Contains(t, err.Error(), "scan_enabled")
	})

	t.Run("unifi url requires scheme and host", func(t *testing.T) {
		assert.Error(t, v.Validate(map[string]string{"unifi_url": "not a url"}))
		assert.Error(t, v.Validate(map[string]string{"unifi_url": "ftp://host"}))
		assert.NoError(t, v.Validate(map[string]string{"unifi_url": "https://unifi.local:8443"}))
	})

	t.Run("snmp community list requires a non-empty token", func(t *testing.T) {
		assert.Error(t, v.Validate(map[string]string{"snmp_community": " , ,"}))
		assert.NoError(t, v.Validate(map[string]string{"snmp_community": "public,private"}))
	})
}
