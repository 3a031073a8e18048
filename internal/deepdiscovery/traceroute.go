package deepdiscovery

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"time"
)

const (
	tracerouteBatchSize = 10
	tracerouteHostCap   = 30
	tracerouteTimeout   = 12 * time.Second
)

var hopIPRe = regexp.MustCompile(`^\s*\d+\s+(\d+\.\d+\.\d+\.\d+)`)

// TracerouteSource runs traceroute per host (capped at 30, batches of
// 10) and turns the last responding hop into a child->parent
// relationship hint; a host reached in zero extra hops is enriched
// directly instead.
type TracerouteSource struct {
	BinaryPath string
}

func (t TracerouteSource) Name() string { return "traceroute" }

func (t TracerouteSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	hosts := sc.KnownHosts
	if len(hosts) > tracerouteHostCap {
		hosts = hosts[:tracerouteHostCap]
	}
	binary := t.BinaryPath
	if binary == "" {
		binary = "traceroute"
	}

	hints := make([]Hint, 0, len(hosts))
	for i := 0; i < len(hosts); i += tracerouteBatchSize {
		end := i + tracerouteBatchSize
		if end > len(hosts) {
			end = len(hosts)
		}
		batch := hosts[i:end]
		results := make(chan Hint, len(batch))
		for _, h := range batch {
			go func(ip string) {
				hint, ok := traceOne(ctx, binary, ip)
				if ok {
					results <- hint
				} else {
					results <- Hint{}
				}
			}(h.IP)
		}
		for range batch {
			if h := <-results; h.IP != "" || h.ChildIP != "" {
				hints = append(hints, h)
			}
		}
	}
	return hints
}

func traceOne(ctx context.Context, binary, ip string) (Hint, bool) {
	ctx, cancel := context.WithTimeout(ctx, tracerouteTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-n", "-m", "5", "-w", "1", "-q", "1", ip)
	out, _ := cmd.Output()
	hops := parseTracerouteHops(out)

	if len(hops) == 0 {
		return Hint{}, false
	}
	if len(hops) == 1 {
		return Hint{
			IP:     ip,
			Method: "traceroute",
			Data:   map[string]interface{}{"hops": 0, "direct": true},
		}, true
	}

	lastHop := hops[len(hops)-2]
	return Hint{
		ChildIP:    ip,
		ParentIP:   lastHop,
		Method:     "traceroute",
		Confidence: 85,
		Detail:     "last responding hop before destination",
	}, true
}

func parseTracerouteHops(out []byte) []string {
	var hops []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if m := hopIPRe.FindStringSubmatch(scanner.Text()); m != nil {
			hops = append(hops, m[1])
		}
	}
	return hops
}
