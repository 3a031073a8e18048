package deepdiscovery

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/mdlayher/arp"
)

// ARPSource enriches known hosts with the MAC/interface an ARP request
// resolves to, tagging a host "L2-direct" when the reply comes back on
// an interface directly attached to its subnet.
type ARPSource struct{}

func (ARPSource) Name() string { return "arp" }

func (ARPSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var hints []Hint
	for _, host := range sc.KnownHosts {
		ip := net.ParseIP(host.IP)
		if ip == nil || ip.To4() == nil {
			continue
		}
		mac, iface, ok := resolveARP(ifaces, ip)
		if !ok {
			continue
		}
		hints = append(hints, Hint{
			IP:     host.IP,
			Method: "arp",
			Data: map[string]interface{}{
				"mac":        mac.String(),
				"iface":      iface,
				"l2Direct":   true,
			},
		})
	}
	return hints
}

func resolveARP(ifaces []net.Interface, targetIP net.IP) (net.HardwareAddr, string, bool) {
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
			if !ok || ipNet.IP.To4() == nil || !ipNet.Contains(targetIP) {
				continue
			}
			mac, err := sendARPRequest(&iface, targetIP)
			if err == nil {
				return mac, iface.Name, true
			}
		}
	}
	return nil, "", false
}

func sendARPRequest(iface *net.Interface, targetIP net.IP) (net.HardwareAddr, error) {
	client, err := arp.Dial(iface)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	targetAddr, ok := netip.AddrFromSlice(targetIP.To4())
	if !ok {
		return nil, errNotIPv4
	}

	client.SetDeadline(time.Now().Add(2 * time.Second))
	if err := client.Request(targetAddr); err != nil {
		return nil, err
	}

	for i := 0; i < 3; i++ {
		packet, _, err := client.Read()
		if err != nil {
			if i == 2 {
				return nil, err
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if packet.Operation == arp.OperationReply && packet.SenderIP.Compare(targetAddr) == 0 {
			return packet.SenderHardwareAddr, nil
		}
	}
	return nil, errNoResponse
}
