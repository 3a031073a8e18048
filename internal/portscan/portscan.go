// Package portscan drives the external nmap binary for host discovery
// and port scanning, parsing its XML output through the Ullaakut/nmap
// wrapper.
package portscan

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

const component = "portscan"

const (
	pingSweepTimeout    = 2 * time.Minute
	portDiscoveryTimeout = 30 * time.Minute
)

// HostSummary is what the ping sweep learns about one alive host.
type HostSummary struct {
	IP       string
	MAC      string
	Vendor   string
	Hostname string
}

// Port is one open TCP port discovered on a host.
type Port struct {
	Port      int
	Protocol  string
	Name      string
	Product   string
	Version   string
	ExtraInfo string
}

// HostScan is one host's result from the port-discovery phase.
type HostScan struct {
	IP       string
	MAC      string
	Vendor   string
	Hostname string
	OSGuess  string
	Ports    []Port
}

// Driver wraps the nmap binary at a configurable path so tests can point
// it at a fake.
type Driver struct {
	NmapPath string
}

func New(nmapPath string) *Driver {
	if nmapPath == "" {
		nmapPath = "nmap"
	}
	return &Driver{NmapPath: nmapPath}
}

// PingSweep invokes nmap in ping-only mode and returns every host that
// answered.
func (d *Driver) PingSweep(ctx context.Context, cidr string) (map[string]HostSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, pingSweepTimeout)
	defer cancel()

	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(cidr),
		nmap.WithPingScan(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		nmap.WithMaxRetries(2),
		nmap.WithBinaryPath(d.NmapPath),
	)
	if err != nil {
		return nil, neterr.ConfigError(component, "build ping sweep scanner", err)
	}

	result, warnings, runErr := scanner.Run()
	if err := toleratePartial(result, warnings, runErr); err != nil {
		return nil, err
	}

	out := make(map[string]HostSummary)
	for _, h := range result.Hosts {
		if !hostIsUp(h) {
			continue
		}
		summary := HostSummary{}
		for _, addr := range h.Addresses {
			switch addr.AddrType {
			case "ipv4":
				summary.IP = addr.Addr
			case "mac":
				summary.MAC = strings.ToLower(addr.Addr)
				summary.Vendor = addr.Vendor
			}
		}
		if len(h.Hostnames) > 0 {
			summary.Hostname = h.Hostnames[0].Name
		}
		if summary.IP == "" {
			continue
		}
		out[summary.IP] = summary
	}
	return out, nil
}

// PortDiscovery invokes a SYN scan with OS detection over portRange and
// returns every host nmap considers up, along with its open ports.
func (d *Driver) PortDiscovery(ctx context.Context, cidr, portRange string) ([]HostScan, error) {
	ctx, cancel := context.WithTimeout(ctx, portDiscoveryTimeout)
	defer cancel()

	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(cidr),
		nmap.WithSYNScan(),
		nmap.WithSkipHostDiscovery(),
		nmap.WithOSDetection(),
		nmap.WithOSScanLimit(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		nmap.WithPorts(portRange),
		nmap.WithOpenOnly(),
		nmap.WithMaxRetries(3),
		nmap.WithHostTimeout(90*time.Second),
		nmap.WithMinRate(200),
		nmap.WithBinaryPath(d.NmapPath),
	)
	if err != nil {
		return nil, neterr.ConfigError(component, "build port discovery scanner", err)
	}

	result, warnings, runErr := scanner.Run()
	if err := toleratePartial(result, warnings, runErr); err != nil {
		return nil, err
	}

	var hosts []HostScan
	for _, h := range result.Hosts {
		if !hostIsUp(h) {
			continue
		}
		hs := HostScan{}
		for _, addr := range h.Addresses {
			switch addr.AddrType {
			case "ipv4":
				hs.IP = addr.Addr
			case "mac":
				hs.MAC = strings.ToLower(addr.Addr)
				hs.Vendor = addr.Vendor
			}
		}
		if len(h.Hostnames) > 0 {
			hs.Hostname = h.Hostnames[0].Name
		}
		if len(h.OS.Matches) > 0 {
			hs.OSGuess = h.OS.Matches[0].Name
		}
		for _, p := range h.Ports {
			if strings.ToLower(p.State.State) != "open" {
				continue
			}
			hs.Ports = append(hs.Ports, Port{
				Port:      int(p.ID),
				Protocol:  p.Protocol,
				Name:      p.Service.Name,
				Product:   p.Service.Product,
				Version:   p.Service.Version,
				ExtraInfo: p.Service.ExtraInfo,
			})
		}
		if hs.IP == "" {
			continue
		}
		hosts = append(hosts, hs)
	}
	return hosts, nil
}

func hostIsUp(h nmap.Host) bool {
	return strings.EqualFold(h.Status.State, "up")
}

// toleratePartial accepts a parsed result even when nmap exited
// non-zero, as long as it actually produced a document, including a
// legitimate zero-host document (an empty network scans clean). It only
// surfaces an error when nothing could be parsed at all.
func toleratePartial(result *nmap.Run, warnings *[]string, runErr error) error {
	if result != nil {
		return nil
	}
	if runErr != nil {
		return neterr.TransportError(component, "nmap run failed", runErr)
	}
	if warnings != nil && len(*warnings) > 0 {
		return neterr.ParseError(component, fmt.Sprintf("nmap produced no output, warnings: %s", strings.Join(*warnings, "; ")), nil)
	}
	return neterr.ParseError(component, "nmap produced no output", nil)
}

// DetectLocalNetwork finds the first private IPv4 interface and returns
// its containing /24. It backs the network-detect API endpoint; the scan
// engine does not call it and falls back to its own fixed default network.
func DetectLocalNetwork() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", neterr.ConfigError(component, "list interfaces", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || !isPrivateIP(ip4) {
				continue
			}
			network := &net.IPNet{IP: ip4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}
			return network.String(), nil
		}
	}
	return "", neterr.ConfigError(component, "no private IPv4 interface found", nil)
}

func isPrivateIP(ip net.IP) bool {
	private := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	for _, cidr := range private {
		_, block, _ := net.ParseCIDR(cidr)
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

var gatewayLineRe = regexp.MustCompile(`default via (\d+\.\d+\.\d+\.\d+)`)

// DetectDefaultGateway shells out to `ip route show default` to find the
// router IP. Nothing in this repository calls it; deep discovery probes
// only the hosts already in the store.
func DetectDefaultGateway(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ip", "route", "show", "default")
	out, err := cmd.Output()
	if err != nil {
		return "", neterr.ToolMissingError(component, "ip route show default", err)
	}
	m := gatewayLineRe.FindSubmatch(out)
	if m == nil {
		return "", neterr.ParseError(component, "no default route found", nil)
	}
	return string(m[1]), nil
}
