package deepdiscovery

import (
	"context"

	"github.com/go-ping/ping"
)

const (
	ttlBatchSize = 20
	ttlHostCap   = 60
)

// osGuessByTTL maps a live TTL back to the most likely transmitted
// default TTL, and from there to a coarse OS family, following the
// well-known 64/128/255 convention.
var osGuessByTTL = []struct {
	max        int
	guess      string
	defaultTTL int
}{
	{64, "Linux/Unix", 64},
	{128, "Windows", 128},
	{255, "network device", 255},
}

// TTLSource pings once per host (capped at 60 hosts per run) and
// enriches with observed TTL, inferred default TTL, hop count, and a
// coarse OS guess.
type TTLSource struct{}

func (TTLSource) Name() string { return "ttl" }

func (TTLSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	hosts := sc.KnownHosts
	if len(hosts) > ttlHostCap {
		hosts = hosts[:ttlHostCap]
	}

	hints := make([]Hint, 0, len(hosts))
	for i := 0; i < len(hosts); i += ttlBatchSize {
		end := i + ttlBatchSize
		if end > len(hosts) {
			end = len(hosts)
		}
		batch := hosts[i:end]
		results := make(chan Hint, len(batch))
		for _, h := range batch {
			go func(ip string) {
				ttl, ok := pingTTL(ip)
				if !ok {
					results <- Hint{}
					return
				}
				defaultTTL, guess := guessFromTTL(ttl)
				results <- Hint{
					IP:     ip,
					Method: "ttl",
					Data: map[string]interface{}{
						"ttl":        ttl,
						"defaultTtl": defaultTTL,
						"hops":       defaultTTL - ttl,
						"osGuess":    guess,
					},
				}
			}(h.IP)
		}
		for range batch {
			if h := <-results; h.IP != "" {
				hints = append(hints, h)
			}
		}
	}
	return hints
}

func pingTTL(ip string) (int, bool) {
	pinger, err := ping.NewPinger(ip)
	if err != nil {
		return 0, false
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	var ttl int
	var recv bool
	pinger.OnRecv = func(pkt *ping.Packet) {
		ttl = pkt.Ttl
		recv = true
	}
	if err := pinger.Run(); err != nil {
		return 0, false
	}
	return ttl, recv
}

func guessFromTTL(observed int) (int, string) {
	for _, rule := range osGuessByTTL {
		if observed <= rule.max {
			return rule.defaultTTL, rule.guess
		}
	}
	return 255, "unknown"
}
