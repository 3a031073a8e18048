package deepdiscovery

import (
	"context"

	"github.com/bmetallica/netcatalog/internal/integrations/proxmox"
)

// ProxmoxSource matches guest MAC addresses against known host MACs to
// produce VM -> hypervisor relationship hints. The hypervisor's own IP
// is supplied directly since it is the host the credentials are stored
// against.
type ProxmoxSource struct {
	Client        *proxmox.Client
	HypervisorIP  string
}

func (p ProxmoxSource) Name() string { return "proxmox" }

func (p ProxmoxSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	if p.Client == nil {
		return nil
	}
	guests, err := p.Client.ListGuestMACs(ctx)
	if err != nil {
		return nil
	}

	macToIP := macIndex(sc.KnownHosts)
	var hints []Hint
	for _, guest := range guests {
		ip, ok := macToIP[guest.MAC]
		if !ok {
			continue
		}
		hints = append(hints, Hint{
			ChildIP:    ip,
			ParentIP:   p.HypervisorIP,
			Method:     "proxmox",
			Confidence: 98,
			Detail:     guest.GuestKind + " " + guest.GuestID + " on " + guest.NodeName,
		})
	}
	return hints
}

func macIndex(hosts []HostRef) map[string]string {
	idx := make(map[string]string, len(hosts))
	for _, h := range hosts {
		if h.MAC != "" {
			idx[h.MAC] = h.IP
		}
	}
	return idx
}
