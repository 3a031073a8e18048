package deepdiscovery

import (
	"context"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const mdnsTimeout = 6 * time.Second

var mdnsServices = []string{
	"_ssh._tcp", "_sftp-ssh._tcp", "_http._tcp", "_https._tcp",
	"_smb._tcp", "_afpovertcp._tcp", "_workstation._tcp", "_device-info._tcp",
}

// MDNSSource browses a fixed set of service types and enriches every
// host that answers with the resolved service instance name.
type MDNSSource struct{}

func (MDNSSource) Name() string { return "mdns" }

func (MDNSSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	type found struct {
		ip      string
		service string
		name    string
	}
	results := make(chan found, 256)

	var wg sync.WaitGroup
	for _, service := range mdnsServices {
		wg.Add(1)
		go func(svc string) {
			defer wg.Done()
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return
			}
			entries := make(chan *zeroconf.ServiceEntry, 100)
			browseCtx, cancel := context.WithTimeout(ctx, mdnsTimeout)
			defer cancel()

			if err := resolver.Browse(browseCtx, svc, "local.", entries); err != nil {
				return
			}
			for entry := range entries {
				if entry == nil {
					continue
				}
				for _, ip := range entry.AddrIPv4 {
					results <- found{ip: ip.String(), service: svc, name: entry.Instance}
				}
			}
		}(service)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	byIP := make(map[string]map[string]interface{})
	for f := range results {
		data, ok := byIP[f.ip]
		if !ok {
			data = map[string]interface{}{}
			byIP[f.ip] = data
		}
		data[f.service] = f.name
	}

	hints := make([]Hint, 0, len(byIP))
	for ip, data := range byIP {
		hints = append(hints, Hint{IP: ip, Method: "mdns", Data: data})
	}
	return hints
}
