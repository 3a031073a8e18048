// Package classify assigns a device type to a host, given everything
// known about it so far, through a fixed precedence table. The first
// rule that fires wins and always carries a human-readable reason.
package classify

import (
	"regexp"
	"strings"
)

// Input is the evidence available to the classifier. Fields are left
// zero-valued when unknown; the classifier treats absence as "no
// opinion" for that rule and falls through to the next one.
type Input struct {
	ManualDeviceType string
	SNMPSysDescr     string
	MAC              string
	OSGuess          string
	TTL              int
	Vendor           string
	OpenPorts        map[int]bool
	PortProduct      map[int]string // port -> product string from the scanner/prober
	IsWindows        bool
}

// Verdict is the classifier's output.
type Verdict struct {
	DeviceType string
	Confidence int
	Reason     string
}

var snmpSysDescrRules = []struct {
	re         *regexp.Regexp
	deviceType string
}{
	{regexp.MustCompile(`(?i)switch`), "switch"},
	{regexp.MustCompile(`(?i)router`), "router"},
	{regexp.MustCompile(`(?i)firewall`), "firewall"},
	{regexp.MustCompile(`(?i)access point|wireless`), "ap"},
	{regexp.MustCompile(`(?i)printer|laserjet|officejet`), "printer"},
	{regexp.MustCompile(`(?i)nas|storage`), "nas"},
}

// vmOUIPrefixes are MAC OUI prefixes (first three octets) assigned to
// common hypervisor virtual NIC pools.
var vmOUIPrefixes = map[string]bool{
	"00:50:56": true, // VMware
	"00:0c:29": true, // VMware
	"00:05:69": true, // VMware
	"08:00:27": true, // VirtualBox
	"52:54:00": true, // QEMU/KVM
	"00:16:3e": true, // Xen
	"00:1c:42": true, // Parallels
}

var osGuessRules = []struct {
	re         *regexp.Regexp
	deviceType string
}{
	{regexp.MustCompile(`(?i)windows server`), "server"},
	{regexp.MustCompile(`(?i)windows`), "client"},
	{regexp.MustCompile(`(?i)linux`), "server"},
	{regexp.MustCompile(`(?i)ios |ipados|macos|mac os x`), "client"},
	{regexp.MustCompile(`(?i)android`), "client"},
	{regexp.MustCompile(`(?i)printer`), "printer"},
}

var serverHeuristicPorts = map[int]bool{22: true, 80: true, 443: true, 3306: true, 5432: true, 6379: true, 27017: true, 8080: true, 8443: true}

// Classify applies the precedence table and returns the first rule that
// fires.
func Classify(in Input) Verdict {
	if in.ManualDeviceType != "" {
		return Verdict{DeviceType: in.ManualDeviceType, Confidence: 100, Reason: "manually set by operator"}
	}

	if in.SNMPSysDescr != "" {
		for _, rule := range snmpSysDescrRules {
			if rule.re.MatchString(in.SNMPSysDescr) {
				return Verdict{DeviceType: rule.deviceType, Confidence: 97, Reason: "SNMP sysDescr matched " + rule.deviceType}
			}
		}
	}

	if in.MAC != "" {
		oui := macOUI(in.MAC)
		if vmOUIPrefixes[oui] {
			return Verdict{DeviceType: "vm", Confidence: 90, Reason: "MAC OUI " + oui + " belongs to a hypervisor vendor"}
		}
	}

	if in.OSGuess != "" {
		for _, rule := range osGuessRules {
			if rule.re.MatchString(in.OSGuess) {
				return Verdict{DeviceType: rule.deviceType, Confidence: 85, Reason: "OS guess matched " + in.OSGuess}
			}
		}
	}

	if in.TTL >= 253 && in.TTL <= 255 {
		deviceType, reason := narrowNetworkDevice(in.Vendor)
		return Verdict{DeviceType: deviceType, Confidence: 70, Reason: reason}
	}

	if verdict, ok := portProductRule(in); ok {
		return verdict
	}

	if in.Vendor != "" {
		if deviceType, ok := vendorRule(in.Vendor, in); ok {
			return deviceType
		}
	}

	if countOpen(in.OpenPorts, serverHeuristicPorts) >= 2 {
		return Verdict{DeviceType: "server", Confidence: 60, Reason: "2+ server ports open"}
	}

	if in.IsWindows && !hasAnyServerPort(in.OpenPorts) {
		return Verdict{DeviceType: "client", Confidence: 50, Reason: "Windows host with no server ports"}
	}

	if in.OpenPorts[53] {
		return Verdict{DeviceType: "server", Confidence: 55, Reason: "port 53 (DNS) open"}
	}

	if in.OpenPorts[22] && len(in.OpenPorts) == 1 && strings.Contains(strings.ToLower(in.OSGuess), "linux") {
		return Verdict{DeviceType: "server", Confidence: 45, Reason: "lone SSH on Linux"}
	}

	return Verdict{DeviceType: "device", Confidence: 10, Reason: "no signal matched"}
}

func narrowNetworkDevice(vendor string) (string, string) {
	switch {
	case regexp.MustCompile(`(?i)h3c|cisco|hp\b`).MatchString(vendor):
		return "switch", "TTL in network-device range, vendor suggests switch"
	case regexp.MustCompile(`(?i)sophos|fortinet`).MatchString(vendor):
		return "firewall", "TTL in network-device range, vendor suggests firewall"
	case regexp.MustCompile(`(?i)ubiquiti|aruba|ruckus`).MatchString(vendor):
		return "ap", "TTL in network-device range, vendor suggests access point"
	case regexp.MustCompile(`(?i)espressif`).MatchString(vendor):
		return "iot", "TTL in network-device range, vendor suggests IoT module"
	default:
		return "switch", "TTL in network-device range, no vendor match"
	}
}

func portProductRule(in Input) (Verdict, bool) {
	if in.OpenPorts[8006] {
		return Verdict{DeviceType: "hypervisor", Confidence: 65, Reason: "Proxmox UI port 8006 open"}, true
	}
	if in.OpenPorts[554] {
		return Verdict{DeviceType: "camera", Confidence: 65, Reason: "RTSP port 554 open"}, true
	}
	if in.OpenPorts[1883] || in.OpenPorts[8883] {
		return Verdict{DeviceType: "iot", Confidence: 60, Reason: "MQTT port open"}, true
	}
	if in.OpenPorts[631] || in.OpenPorts[9100] {
		return Verdict{DeviceType: "printer", Confidence: 65, Reason: "printer port open"}, true
	}
	return Verdict{}, false
}

func vendorRule(vendor string, in Input) (Verdict, bool) {
	lower := strings.ToLower(vendor)
	switch {
	case strings.Contains(lower, "h3c") || strings.Contains(lower, "cisco"):
		return Verdict{DeviceType: "switch", Confidence: 75, Reason: "vendor " + vendor + " is network-gear"}, true
	case strings.Contains(lower, "hewlett") || strings.HasPrefix(lower, "hp "):
		return hpSpecialCase(in), true
	case strings.Contains(lower, "sophos") || strings.Contains(lower, "fortinet"):
		return Verdict{DeviceType: "firewall", Confidence: 75, Reason: "vendor " + vendor + " is firewall appliance"}, true
	case strings.Contains(lower, "ubiquiti") || strings.Contains(lower, "aruba") || strings.Contains(lower, "ruckus"):
		return Verdict{DeviceType: "ap", Confidence: 75, Reason: "vendor " + vendor + " is wireless gear"}, true
	}
	return Verdict{}, false
}

// hpSpecialCase resolves the ambiguous HP vendor string: HP makes
// switches, printers, and servers, so port evidence decides.
func hpSpecialCase(in Input) Verdict {
	if in.OpenPorts[631] || in.OpenPorts[9100] {
		return Verdict{DeviceType: "printer", Confidence: 75, Reason: "HP vendor with printer ports open"}
	}
	if countOpen(in.OpenPorts, serverHeuristicPorts) >= 2 {
		return Verdict{DeviceType: "server", Confidence: 70, Reason: "HP vendor with server ports open"}
	}
	return Verdict{DeviceType: "unknown", Confidence: 40, Reason: "HP vendor, insufficient port evidence"}
}

func countOpen(open map[int]bool, candidates map[int]bool) int {
	count := 0
	for port := range candidates {
		if open[port] {
			count++
		}
	}
	return count
}

func hasAnyServerPort(open map[int]bool) bool {
	return countOpen(open, serverHeuristicPorts) > 0
}

func macOUI(mac string) string {
	mac = strings.ToLower(mac)
	parts := strings.Split(mac, ":")
	if len(parts) < 3 {
		return mac
	}
	return strings.Join(parts[:3], ":")
}
