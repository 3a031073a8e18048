// Package scanengine orchestrates the full scan pipeline: liveness,
// port discovery, per-host probing, availability history, and the
// optional deep-discovery topology pass. It is the only caller of
// DeepDiscovery.Run and the sole writer of scans rows.
package scanengine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bmetallica/netcatalog/internal/classify"
	"github.com/bmetallica/netcatalog/internal/deepdiscovery"
	"github.com/bmetallica/netcatalog/internal/integrations/avm"
	"github.com/bmetallica/netcatalog/internal/integrations/proxmox"
	"github.com/bmetallica/netcatalog/internal/integrations/uisp"
	"github.com/bmetallica/netcatalog/internal/neterr"
	"github.com/bmetallica/netcatalog/internal/portscan"
	"github.com/bmetallica/netcatalog/internal/probe"
	"github.com/bmetallica/netcatalog/internal/secrets"
	"github.com/bmetallica/netcatalog/internal/serviceid"
	"github.com/bmetallica/netcatalog/internal/store"
	"github.com/bmetallica/netcatalog/internal/wshub"
)

const (
	component = "scanengine"

	defaultNetwork = "192.168.66.0/24"
	defaultPorts   = "1-10000"

	probeFanout    = 8
	livenessFanout = 8
	livenessDial   = 1 * time.Second
)

var livenessPorts = []int{443, 80, 22}

// Engine wires the domain components into the pipeline described by the
// scan spec: PortScanner -> Prober -> ServiceIdentifier -> Store, with an
// optional DeepDiscovery pass at the end.
type Engine struct {
	Store      *store.Store
	PortDriver *portscan.Driver
	Prober     *probe.Prober
	Discovery  *deepdiscovery.Engine
	Secrets    *secrets.Store
	Hub        *wshub.Hub

	scanGuard      guard
	discoveryGuard guard
}

// New builds an Engine from its already-constructed dependencies.
// Discovery holds the credential-free sources (arp/mdns/ssdp/rtt/ttl/
// traceroute/snmp); integration-backed sources (Proxmox/AVM/UISP) are
// built fresh on every discovery run from whatever credentials are
// currently stored, since those can change between runs without a
// process restart.
func New(st *store.Store, pd *portscan.Driver, pr *probe.Prober, disc *deepdiscovery.Engine, sec *secrets.Store, hub *wshub.Hub) *Engine {
	return &Engine{Store: st, PortDriver: pd, Prober: pr, Discovery: disc, Secrets: sec, Hub: hub}
}

// integrationSources builds a Proxmox/AVM source per credentialed host
// and a single UISP source from the global controller settings, decrypting
// each secret just long enough to construct the client.
func (e *Engine) integrationSources(hosts []store.Host, settings map[string]string) []deepdiscovery.Source {
	var sources []deepdiscovery.Source
	for _, h := range hosts {
		if h.ProxmoxAPIHost != "" && h.ProxmoxSecretRef != "" {
			secret, err := e.Secrets.Get(secrets.Ref(h.ProxmoxSecretRef))
			if err != nil {
				log.Warn().Err(err).Str("host", h.IPAddress).Msg("proxmox secret unavailable, skipping source")
				continue
			}
			sources = append(sources, deepdiscovery.ProxmoxSource{
				Client:       proxmox.New(h.ProxmoxAPIHost, h.ProxmoxTokenID, secret),
				HypervisorIP: h.IPAddress,
			})
		}
		if h.FritzBoxHost != "" && h.FritzBoxSecretRef != "" {
			secret, err := e.Secrets.Get(secrets.Ref(h.FritzBoxSecretRef))
			if err != nil {
				log.Warn().Err(err).Str("host", h.IPAddress).Msg("fritzbox secret unavailable, skipping source")
				continue
			}
			sources = append(sources, deepdiscovery.AVMSource{
				Client:  avm.New(h.FritzBoxHost, h.FritzBoxUsername, secret),
				FritzIP: h.IPAddress,
			})
		}
	}
	if url := settings["unifi_url"]; url != "" {
		if ref := settings["unifi_secret_ref"]; ref != "" {
			token, err := e.Secrets.Get(secrets.Ref(ref))
			if err != nil {
				log.Warn().Err(err).Msg("unifi secret unavailable, skipping uisp source")
			} else {
				sources = append(sources, deepdiscovery.UISPSource{Client: uisp.New(url, token)})
			}
		}
	}
	return sources
}

func (e *Engine) broadcast(event string, data interface{}) {
	if e.Hub != nil {
		e.Hub.Broadcast("scan", event, data)
	}
}

// RunScan executes the full ten-step pipeline once. It is reentrant-safe:
// a second caller while one run is in flight gets a SingletonBusy error
// immediately rather than waiting for the first to finish.
func (e *Engine) RunScan(ctx context.Context) (*store.Scan, error) {
	if !e.scanGuard.tryAcquire() {
		return nil, neterr.SingletonBusyError(component, "scan already running")
	}
	defer e.scanGuard.release()

	logger := log.With().Str("component", component).Logger()

	settings, err := e.Store.GetSettings()
	if err != nil {
		return nil, err
	}
	network := settingOr(settings, "scan_network", defaultNetwork)
	portRange := settingOr(settings, "scan_ports", defaultPorts)

	scan, err := e.Store.CreateScan(network)
	if err != nil {
		return nil, err
	}
	e.broadcast("scan_started", map[string]interface{}{"id": scan.ID, "network": network})

	hostsFound, servicesFound, runErr := e.runPipeline(ctx, logger, network, portRange, settings)

	status := store.ScanStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = store.ScanStatusError
		errMsg = runErr.Error()
		logger.Error().Err(runErr).Msg("scan failed")
	}
	if err := e.Store.FinishScan(scan.ID, status, hostsFound, servicesFound, errMsg); err != nil {
		logger.Error().Err(err).Msg("failed to finalize scan row")
	}
	finishedAt := time.Now()
	scan.Status, scan.HostsFound, scan.ServicesFound, scan.Error = status, hostsFound, servicesFound, errMsg
	scan.FinishedAt = &finishedAt
	e.broadcast("scan_finished", map[string]interface{}{
		"id": scan.ID, "status": status, "hosts": hostsFound, "services": servicesFound,
	})

	return scan, runErr
}

// runPipeline implements spec steps 3-9: ping sweep, port discovery,
// liveness backstop, down/closed grace transitions, availability
// samples, per-host probing, and the optional deep-discovery pass.
func (e *Engine) runPipeline(ctx context.Context, logger zerolog.Logger, network, portRange string, settings map[string]string) (int, int, error) {
	now := time.Now()

	pingResults, err := e.PortDriver.PingSweep(ctx, network)
	if err != nil {
		return 0, 0, err
	}
	logger.Info().Int("hosts", len(pingResults)).Msg("phase 0: ping sweep complete")

	portResults, err := e.PortDriver.PortDiscovery(ctx, network, portRange)
	if err != nil {
		return 0, 0, err
	}
	logger.Info().Int("hosts", len(portResults)).Msg("phase 1: port discovery complete")

	alive := make(map[string]bool, len(pingResults)+len(portResults))
	for ip := range pingResults {
		alive[ip] = true
	}
	for _, h := range portResults {
		alive[h.IP] = true
	}

	livenessHits := e.phase15Liveness(ctx, alive)
	for _, ip := range livenessHits {
		alive[ip] = true
	}
	logger.Info().Int("additional", len(livenessHits)).Msg("phase 1.5: liveness backstop complete")

	if err := e.markDownAndSampleAvailability(alive, now); err != nil {
		return 0, 0, err
	}

	hostsFound, servicesFound, err := e.phase2ProbeAndPersist(ctx, pingResults, portResults, now)
	if err != nil {
		return hostsFound, servicesFound, err
	}

	if settingOr(settings, "deep_discovery_enabled", "true") != "false" {
		if err := e.runDeepDiscovery(ctx, logger); err != nil {
			logger.Error().Err(err).Msg("deep discovery failed, scan still counts as completed")
		}
	}

	return hostsFound, servicesFound, nil
}

// phase15Liveness attempts a lightweight liveness probe for every stored
// host absent from both alive sets: TCP connect to 443, 80, 22 in order,
// falling back to one ICMP echo, capped at livenessFanout concurrent
// hosts.
func (e *Engine) phase15Liveness(ctx context.Context, alive map[string]bool) []string {
	hosts, err := e.Store.ListHosts()
	if err != nil {
		return nil
	}

	var candidates []string
	for _, h := range hosts {
		if !alive[h.IPAddress] {
			candidates = append(candidates, h.IPAddress)
		}
	}

	sem := make(chan struct{}, livenessFanout)
	var mu sync.Mutex
	var hits []string
	var wg sync.WaitGroup

	for _, ip := range candidates {
		ip := ip
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if probeLiveness(ctx, ip) {
				mu.Lock()
				hits = append(hits, ip)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return hits
}

func (e *Engine) markDownAndSampleAvailability(alive map[string]bool, now time.Time) error {
	hosts, err := e.Store.ListHosts()
	if err != nil {
		return err
	}

	aliveIDs := make(map[uuid.UUID]bool, len(hosts))
	var aliveList []uuid.UUID
	for _, h := range hosts {
		if alive[h.IPAddress] {
			aliveIDs[h.ID] = true
			aliveList = append(aliveList, h.ID)
		}
	}

	if err := e.Store.MarkHostsUpAndSeen(aliveList, now); err != nil {
		return err
	}
	if err := e.Store.MarkHostsDownGraceful(aliveList, now); err != nil {
		return err
	}
	return e.Store.WriteAvailabilitySamples(aliveIDs, now)
}

// phase2ProbeAndPersist upserts every port-discovery host, probes its
// open ports (<=probeFanout concurrent per host), identifies each
// service, and persists. Closed-port reconciliation only runs for hosts
// whose phase-1 record had at least one open port.
func (e *Engine) phase2ProbeAndPersist(ctx context.Context, pingResults map[string]portscan.HostSummary, portResults []portscan.HostScan, now time.Time) (int, int, error) {
	hostsFound := 0
	servicesFound := 0

	for _, hs := range portResults {
		summary := pingResults[hs.IP]
		hostRow := store.Host{
			Hostname: firstNonEmpty(hs.Hostname, summary.Hostname),
			MAC:      firstNonEmpty(hs.MAC, summary.MAC),
			Vendor:   firstNonEmpty(hs.Vendor, summary.Vendor),
			OSGuess:  hs.OSGuess,
			Status:   store.HostStatusUp,
		}
		host, err := e.Store.UpsertHost(hs.IP, hostRow)
		if err != nil {
			return hostsFound, servicesFound, err
		}
		hostsFound++

		portsSeen := e.probeHostPorts(ctx, host.ID, hs)
		servicesFound += len(portsSeen)

		if len(hs.Ports) > 0 {
			if err := e.Store.MarkServicesClosedGraceful(host.ID, portsSeen, now); err != nil {
				return hostsFound, servicesFound, err
			}
		}
	}

	return hostsFound, servicesFound, nil
}

func (e *Engine) probeHostPorts(ctx context.Context, hostID uuid.UUID, hs portscan.HostScan) []int {
	sem := make(chan struct{}, probeFanout)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var portsSeen []int

	for _, p := range hs.Ports {
		p := p
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result := e.Prober.Probe(ctx, hs.IP, p.Port)
			hint := serviceid.ScannerHint{Name: p.Name, Product: p.Product, Version: p.Version}
			identity := serviceid.Identify(p.Port, result, hint)

			svc := store.Service{
				Port:         p.Port,
				Protocol:     firstNonEmpty(p.Protocol, "tcp"),
				ServiceName:  sanitize(identity.IdentifiedAs),
				Product:      sanitize(identity.Product),
				Version:      sanitize(identity.Version),
				Info:         sanitize(p.ExtraInfo),
				Banner:       sanitize(identity.Banner),
				HTTPTitle:    sanitize(identity.HTTPTitle),
				HTTPServer:   sanitize(identity.HTTPServer),
				IdentifiedAs: sanitize(identity.IdentifiedAs),
				ExtraInfo:    extraInfoJSON(identity),
			}
			if _, err := e.Store.UpsertService(hostID, svc); err != nil {
				return
			}

			mu.Lock()
			portsSeen = append(portsSeen, p.Port)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return portsSeen
}

func (e *Engine) runDeepDiscovery(ctx context.Context, logger zerolog.Logger) error {
	return e.RunDeepDiscoveryStandalone(ctx, logger)
}

// RunDeepDiscoveryStandalone is Phase 3 alone, independently guarded so
// a manually-triggered discovery run can't race an in-progress scan's
// own discovery phase.
func (e *Engine) RunDeepDiscoveryStandalone(ctx context.Context, logger zerolog.Logger) error {
	if e.Discovery == nil {
		return nil
	}
	if !e.discoveryGuard.tryAcquire() {
		return neterr.SingletonBusyError(component, "deep discovery already running")
	}
	defer e.discoveryGuard.release()

	hosts, err := e.Store.ListHosts()
	if err != nil {
		return err
	}

	refs := make([]deepdiscovery.HostRef, 0, len(hosts))
	macByIP := make(map[string]string, len(hosts))
	typeByIP := make(map[string]string, len(hosts))
	for _, h := range hosts {
		refs = append(refs, deepdiscovery.HostRef{ID: h.ID.String(), IP: h.IPAddress, MAC: h.MAC})
		macByIP[h.IPAddress] = h.MAC
		typeByIP[h.IPAddress] = h.DeviceType
	}

	settings, err := e.Store.GetSettings()
	if err != nil {
		return err
	}

	e.broadcast("discovery_started", map[string]interface{}{"hosts": len(refs)})

	sc := deepdiscovery.SourceContext{KnownHosts: refs, Settings: settings}
	run := e.Discovery
	if extra := e.integrationSources(hosts, settings); len(extra) > 0 {
		run = deepdiscovery.NewEngine(append(append([]deepdiscovery.Source{}, e.Discovery.Sources...), extra...)...)
		run.Timeout = e.Discovery.Timeout
	}
	resolution, totalHints := run.Run(ctx, sc, macByIP)

	deepdiscovery.FilterSanityEdges(resolution.Parents, func(ip string) string {
		if manual := typeByIP[ip]; manual != "" {
			return manual
		}
		return e.bestGuessDeviceType(ip)
	})

	assignments := make(map[uuid.UUID]uuid.UUID, len(resolution.Parents))
	ipToID := make(map[string]uuid.UUID, len(hosts))
	for _, h := range hosts {
		ipToID[h.IPAddress] = h.ID
	}
	for childIP, cand := range resolution.Parents {
		childID, ok1 := ipToID[childIP]
		parentID, ok2 := ipToID[cand.ParentIP]
		if !ok1 || !ok2 || childID == parentID {
			continue
		}
		assignments[childID] = parentID
	}
	if err := e.Store.ApplyHintAssignments(assignments); err != nil {
		return err
	}

	now := time.Now()
	for _, h := range hosts {
		byMethod := resolution.Enrichment[h.IPAddress]
		if byMethod == nil {
			continue
		}
		data := map[string]interface{}{"_lastDiscovery": now.Format(time.RFC3339)}
		for method, values := range byMethod {
			data[method] = values
		}
		encoded, err := marshalDiscoveryInfo(data)
		if err != nil {
			continue
		}
		if err := e.Store.UpdateDiscoveryInfo(h.ID, encoded); err != nil {
			logger.Warn().Err(err).Str("host", h.IPAddress).Msg("failed to persist discovery info")
		}
	}

	logger.Info().
		Int("totalHints", totalHints).
		Int("relationships", len(assignments)).
		Msg("deep discovery applied")
	e.broadcast("discovery_finished", map[string]interface{}{"relationships": len(assignments)})

	return nil
}

// bestGuessDeviceType runs the classifier over whatever is already known
// about a host, used only to keep sanity-edge filtering from reparenting
// an obvious VM or gateway.
func (e *Engine) bestGuessDeviceType(ip string) string {
	host, err := e.Store.GetHostByIP(ip)
	if err != nil || host == nil {
		return ""
	}
	services, err := e.Store.ListServices(host.ID)
	if err != nil {
		return ""
	}

	openPorts := make(map[int]bool, len(services))
	portProduct := make(map[int]string, len(services))
	for _, s := range services {
		openPorts[s.Port] = true
		portProduct[s.Port] = s.Product
	}

	verdict := classify.Classify(classify.Input{
		ManualDeviceType: host.DeviceType,
		MAC:              host.MAC,
		OSGuess:          host.OSGuess,
		Vendor:           host.Vendor,
		OpenPorts:        openPorts,
		PortProduct:      portProduct,
		IsWindows:        strings.Contains(strings.ToLower(host.OSGuess), "windows"),
	})
	return verdict.DeviceType
}

func probeLiveness(ctx context.Context, ip string) bool {
	for _, port := range livenessPorts {
		dialCtx, cancel := context.WithTimeout(ctx, livenessDial)
		ok := tcpDialOK(dialCtx, ip, port)
		cancel()
		if ok {
			return true
		}
	}
	return icmpEchoOK(ctx, ip)
}

func settingOr(settings map[string]string, key, fallback string) string {
	if v, ok := settings[key]; ok && v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// extraInfoJSON builds the service's extraInfo sub-document: matchSource,
// statusCode and an icon hint for the dashboard, per spec.md §3.
func extraInfoJSON(identity serviceid.Identity) []byte {
	encoded, err := json.Marshal(map[string]interface{}{
		"matchSource": identity.MatchSource,
		"statusCode":  identity.StatusCode,
		"icon":        identity.Icon,
	})
	if err != nil {
		return nil
	}
	return encoded
}
