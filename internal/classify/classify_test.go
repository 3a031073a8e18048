package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_ManualOverrideWins(t *testing.T) {
	v := Classify(Input{ManualDeviceType: "nas", SNMPSysDescr: "Cisco IOS Switch"})
	assert.Equal(t, "nas", v.DeviceType)
	assert.Equal(t, 100, v.Confidence)
}

func TestClassify_SNMPSysDescr(t *testing.T) {
	t.Run("switch", func(t *testing.T) {
		v := Classify(Input{SNMPSysDescr: "Cisco IOS Switch, C2960"})
		assert.Equal(t, "switch", v.DeviceType)
	})

	t.Run("access point", func(t *testing.T) {
		v := Classify(Input{SNMPSysDescr: "Ubiquiti Wireless Access Point"})
		assert.Equal(t, "ap", v.DeviceType)
	})
}

func TestClassify_VMOuiPrefix(t *testing.T) {
	v := Classify(Input{MAC: "00:50:56:aa:bb:cc"})
	assert.Equal(t, "vm", v.DeviceType)
	assert.Equal(t, 90, v.Confidence)
}

func TestClassify_OSGuess(t *testing.T) {
	v := Classify(Input{OSGuess: "Microsoft Windows Server 2019"})
	assert.Equal(t, "server", v.DeviceType)
}

func TestClassify_TTLNarrowsToNetworkDevice(t *testing.T) {
	t.Run("vendor match", func(t *testing.T) {
		v := Classify(Input{TTL: 255, Vendor: "Ubiquiti Networks"})
		assert.Equal(t, "ap", v.DeviceType)
	})

	t.Run("no vendor match falls back to switch", func(t *testing.T) {
		v := Classify(Input{TTL: 254, Vendor: "Unknown Corp"})
		assert.Equal(t, "switch", v.DeviceType)
	})
}

func TestClassify_PortProductRules(t *testing.T) {
	t.Run("proxmox ui port", func(t *testing.T) {
		v := Classify(Input{OpenPorts: map[int]bool{8006: true}})
		assert.Equal(t, "hypervisor", v.DeviceType)
	})

	t.Run("rtsp camera port", func(t *testing.T) {
		v := Classify(Input{OpenPorts: map[int]bool{554: true}})
		assert.Equal(t, "camera", v.DeviceType)
	})

	t.Run("mqtt iot port", func(t *testing.T) {
		v := Classify(Input{OpenPorts: map[int]bool{8883: true}})
		assert.Equal(t, "iot", v.DeviceType)
	})
}

func TestClassify_ServerHeuristic(t *testing.T) {
	v := Classify(Input{OpenPorts: map[int]bool{80: true, 443: true}})
	assert.Equal(t, "server", v.DeviceType)
}

func TestClassify_WindowsClientFallback(t *testing.T) {
	v := Classify(Input{IsWindows: true, OpenPorts: map[int]bool{445: true}})
	assert.Equal(t, "client", v.DeviceType)
}

func TestClassify_NoSignalFallsThrough(t *testing.T) {
	v := Classify(Input{})
	assert.Equal(t, "device", v.DeviceType)
	assert.Equal(t, 10, v.Confidence)
}
