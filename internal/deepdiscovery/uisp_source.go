package deepdiscovery

import (
	"context"

	"github.com/bmetallica/netcatalog/internal/integrations/uisp"
)

// UISPSource reports wireless clients associated to each managed
// AP/switch as children of that device.
type UISPSource struct {
	Client *uisp.Client
}

func (u UISPSource) Name() string { return "uisp" }

func (u UISPSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	if u.Client == nil {
		return nil
	}
	devices, err := u.Client.ListDevices(ctx)
	if err != nil {
		return nil
	}

	var hints []Hint
	for _, d := range devices {
		if d.IP != "" {
			hints = append(hints, Hint{IP: d.IP, Method: "uisp-device", Data: map[string]interface{}{"name": d.Name}})
		}
	}

	stationsByDevice, err := u.Client.ListStations(ctx, devices)
	if err != nil {
		return hints
	}
	ipByID := make(map[string]string, len(devices))
	for _, d := range devices {
		ipByID[d.ID] = d.IP
	}
	for deviceID, stations := range stationsByDevice {
		parentIP := ipByID[deviceID]
		if parentIP == "" {
			continue
		}
		for _, st := range stations {
			if st.IP == "" {
				continue
			}
			hints = append(hints, Hint{
				ChildIP:    st.IP,
				ParentIP:   parentIP,
				Method:     "uisp-station",
				Confidence: 92,
				Detail:     st.MAC,
			})
		}
	}
	return hints
}
