package deepdiscovery

import (
	"context"
	"sort"
	"time"

	"github.com/go-ping/ping"
)

const (
	rttBatchSize  = 20
	rttPingCount  = 3
	rttClusterGap = 500 * time.Microsecond
)

// RTTSource samples round-trip time per host and clusters hosts whose
// RTTs are close together, on the theory that devices behind the same
// switch hop see similar latency. It is purely informational: it never
// emits a relationship, only per-host enrichment.
type RTTSource struct{}

func (RTTSource) Name() string { return "rtt" }

func (RTTSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	type sample struct {
		ip  string
		rtt time.Duration
		ok  bool
	}

	samples := make([]sample, 0, len(sc.KnownHosts))
	for i := 0; i < len(sc.KnownHosts); i += rttBatchSize {
		end := i + rttBatchSize
		if end > len(sc.KnownHosts) {
			end = len(sc.KnownHosts)
		}
		batch := sc.KnownHosts[i:end]
		results := make(chan sample, len(batch))
		for _, h := range batch {
			go func(ip string) {
				rtt, ok := pingAverageRTT(ip)
				results <- sample{ip: ip, rtt: rtt, ok: ok}
			}(h.IP)
		}
		for range batch {
			s := <-results
			if s.ok {
				samples = append(samples, s)
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].rtt < samples[j].rtt })

	clusterID := 0
	hints := make([]Hint, 0, len(samples))
	for i, s := range samples {
		if i > 0 && samples[i].rtt-samples[i-1].rtt > rttClusterGap {
			clusterID++
		}
		hints = append(hints, Hint{
			IP:     s.ip,
			Method: "rtt",
			Data: map[string]interface{}{
				"rtt":     s.rtt.Seconds(),
				"cluster": clusterID,
			},
		})
	}

	clusterSizes := map[int]int{}
	for _, h := range hints {
		clusterSizes[h.Data["cluster"].(int)]++
	}
	for i := range hints {
		hints[i].Data["clusterSize"] = clusterSizes[hints[i].Data["cluster"].(int)]
	}
	return hints
}

func pingAverageRTT(ip string) (time.Duration, bool) {
	pinger, err := ping.NewPinger(ip)
	if err != nil {
		return 0, false
	}
	pinger.SetPrivileged(false)
	pinger.Count = rttPingCount
	pinger.Interval = 100 * time.Millisecond
	pinger.Timeout = 2 * time.Second

	if err := pinger.Run(); err != nil {
		return 0, false
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, false
	}
	return stats.AvgRtt, true
}
