package deepdiscovery

import (
	"context"

	"github.com/bmetallica/netcatalog/internal/integrations/avm"
)

// AVMSource reports wireless clients associated to a FRITZ!Box as
// children at confidence 95, and every active GetHostList entry with an
// interface type and an IP as an "avm-wired" child at 88. A wireless
// station with no IP whose MAC matches no known host is skipped: it
// yields no hint, and no host row is created for it.
type AVMSource struct {
	Client    *avm.Client
	FritzIP   string
}

func (a AVMSource) Name() string { return "avm" }

func (a AVMSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	if a.Client == nil {
		return nil
	}

	macToIP := macIndex(sc.KnownHosts)
	var hints []Hint

	if stations, err := a.Client.ListWirelessStations(ctx); err == nil {
		for _, st := range stations {
			ip := st.IP
			if ip == "" {
				ip = macToIP[st.MAC]
			}
			if ip == "" {
				continue
			}
			hints = append(hints, Hint{
				ChildIP:    ip,
				ParentIP:   a.FritzIP,
				Method:     "avm-wlan",
				Confidence: 95,
				Detail:     st.MAC,
			})
		}
	}

	if hosts, err := a.Client.ListHosts(ctx); err == nil {
		for _, h := range hosts {
			if !h.Active || h.InterfaceType == "" || h.IP == "" {
				continue
			}
			hints = append(hints, Hint{
				ChildIP:    h.IP,
				ParentIP:   a.FritzIP,
				Method:     "avm-wired",
				Confidence: 88,
				Detail:     h.Hostname,
			})
		}
	}

	return hints
}
