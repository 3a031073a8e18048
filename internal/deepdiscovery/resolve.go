package deepdiscovery

// ParentCandidate is one proposed parent for a child IP, carrying enough
// context to compare against competing hints.
type ParentCandidate struct {
	ParentIP   string
	Method     string
	Confidence int
}

// Resolution is the final fused topology, ready to be translated into
// store IDs and persisted.
type Resolution struct {
	Parents    map[string]ParentCandidate  // childIP -> chosen parent
	Enrichment map[string]map[string][]interface{} // ip -> method -> []data
}

// Resolve implements the confidence-weighted fusion algorithm: SNMP
// bridge-MIB evidence is rescored by port MAC count, then every other
// relationship hint overlays it only if strictly more confident.
func Resolve(hints []Hint, knownMACByIP map[string]string) Resolution {
	res := Resolution{
		Parents:    map[string]ParentCandidate{},
		Enrichment: map[string]map[string][]interface{}{},
	}

	ipByMAC := make(map[string]string, len(knownMACByIP))
	for ip, mac := range knownMACByIP {
		if mac != "" {
			ipByMAC[mac] = ip
		}
	}

	var snmpHints []Hint
	var otherHints []Hint
	for _, h := range hints {
		if h.Method == "snmp-mac-table" {
			snmpHints = append(snmpHints, h)
			continue
		}
		if !h.IsRelationship() {
			mergeEnrichment(res.Enrichment, h)
			continue
		}
		otherHints = append(otherHints, h)
	}

	applySNMPMACTable(res.Parents, snmpHints, ipByMAC)
	applyOverlay(res.Parents, otherHints)
	dropSanityViolations(res.Parents, knownMACByIP)

	return res
}

func mergeEnrichment(store map[string]map[string][]interface{}, h Hint) {
	if h.IP == "" || h.Data == nil {
		return
	}
	byMethod, ok := store[h.IP]
	if !ok {
		byMethod = map[string][]interface{}{}
		store[h.IP] = byMethod
	}
	byMethod[h.Method] = append(byMethod[h.Method], h.Data)
}

// applySNMPMACTable resolves each snmp-mac-table hint's MAC (carried in
// Detail) to a known child IP, then for each child keeps only the
// candidate parent with the lowest learnt-MAC count on its port,
// rescoring confidence by that count.
func applySNMPMACTable(parents map[string]ParentCandidate, hints []Hint, ipByMAC map[string]string) {
	type candidate struct {
		parentIP string
		count    int
	}
	best := map[string]candidate{}

	for _, h := range hints {
		childIP, ok := ipByMAC[h.Detail]
		if !ok || childIP == h.ParentIP {
			continue
		}
		if existing, seen := best[childIP]; !seen || h.PortMACCount < existing.count {
			best[childIP] = candidate{parentIP: h.ParentIP, count: h.PortMACCount}
		}
	}

	for childIP, c := range best {
		parents[childIP] = ParentCandidate{
			ParentIP:   c.parentIP,
			Method:     "snmp-mac-table",
			Confidence: rescoreByMACCount(c.count),
		}
	}
}

func rescoreByMACCount(count int) int {
	switch {
	case count <= 3:
		return 95
	case count <= 10:
		return 85
	default:
		return 75
	}
}

// applyOverlay replaces the current best parent for a child only when
// the new hint's confidence is strictly higher.
func applyOverlay(parents map[string]ParentCandidate, hints []Hint) {
	for _, h := range hints {
		if h.ChildIP == h.ParentIP {
			continue
		}
		existing, ok := parents[h.ChildIP]
		if !ok || h.Confidence > existing.Confidence {
			parents[h.ChildIP] = ParentCandidate{
				ParentIP:   h.ParentIP,
				Method:     h.Method,
				Confidence: h.Confidence,
			}
		}
	}
}

// DeviceTypeLookup returns the device type recorded for an IP ("" when
// none), used by the sanity-edge filter below.
type DeviceTypeLookup func(ip string) string

// dropSanityViolations removes two edge shapes that resolution should
// never produce regardless of evidence confidence: a VM reparented
// under a switch/ap/gateway/router, and a gateway/firewall reparented
// under a switch. It has no device types to check here and is a no-op;
// the filtering itself is done by FilterSanityEdges.
func dropSanityViolations(parents map[string]ParentCandidate, _ map[string]string) {
	// Device-type-aware filtering happens in FilterSanityEdges, which the
	// ScanEngine calls once host device types are known; relationship
	// hints alone don't carry device type.
}

// FilterSanityEdges drops the two forbidden edge shapes once device
// types are known for both ends of every candidate edge.
func FilterSanityEdges(parents map[string]ParentCandidate, deviceType DeviceTypeLookup) {
	for childIP, cand := range parents {
		childType := deviceType(childIP)
		parentType := deviceType(cand.ParentIP)

		if childType == "vm" && isOneOf(parentType, "switch", "ap", "gateway", "router") {
			delete(parents, childIP)
			continue
		}
		if isOneOf(childType, "gateway", "firewall") && parentType == "switch" {
			delete(parents, childIP)
		}
	}
}

func isOneOf(value string, options ...string) bool {
	for _, o := range options {
		if value == o {
			return true
		}
	}
	return false
}
