package deepdiscovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_SeparatesEnrichmentFromRelationships(t *testing.T) {
	hints := []Hint{
		{IP: "10.0.0.5", Method: "mdns", Data: map[string]interface{}{"service": "_http._tcp"}},
		{ChildIP: "10.0.0.5", ParentIP: "10.0.0.1", Method: "lldp", Confidence: 95},
	}
	res := Resolve(hints, nil)

	assert.Len(t, res.Enrichment, 1)
	assert.Equal(t, "10.0.0.1", res.Parents["10.0.0.5"].ParentIP)
}

func TestResolve_SNMPMACTablePicksLowestPortCount(t *testing.T) {
	knownMAC := map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"}
	hints := []Hint{
		{ChildIP: "", ParentIP: "10.0.0.2", Method: "snmp-mac-table", Detail: "aa:bb:cc:dd:ee:ff", PortMACCount: 12},
		{ChildIP: "", ParentIP: "10.0.0.3", Method: "snmp-mac-table", Detail: "aa:bb:cc:dd:ee:ff", PortMACCount: 2},
	}
	res := Resolve(hints, knownMAC)

	cand := res.Parents["10.0.0.5"]
	assert.Equal(t, "10.0.0.3", cand.ParentIP)
	assert.Equal(t, 95, cand.Confidence)
}

func TestResolve_OverlayOnlyReplacesOnStrictlyHigherConfidence(t *testing.T) {
	knownMAC := map[string]string{"10.0.0.5": "aa:bb:cc:dd:ee:ff"}
	hints := []Hint{
		{ParentIP: "10.0.0.2", Method: "snmp-mac-table", Detail: "aa:bb:cc:dd:ee:ff", PortMACCount: 1}, // confidence 95
		{ChildIP: "10.0.0.5", ParentIP: "10.0.0.9", Method: "rtt-cluster", Confidence: 60},
	}
	res := Resolve(hints, knownMAC)

	assert.Equal(t, "10.0.0.2", res.Parents["10.0.0.5"].ParentIP, "lower-confidence hint must not overlay the SNMP candidate")
}

func TestResolve_OverlayWinsWhenStrictlyHigher(t *testing.T) {
	hints := []Hint{
		{ChildIP: "10.0.0.5", ParentIP: "10.0.0.9", Method: "avm-wired", Confidence: 88},
		{ChildIP: "10.0.0.5", ParentIP: "10.0.0.2", Method: "proxmox", Confidence: 98},
	}
	res := Resolve(hints, nil)
	assert.Equal(t, "10.0.0.2", res.Parents["10.0.0.5"].ParentIP)
}

func TestResolve_SelfEdgeIgnored(t *testing.T) {
	hints := []Hint{{ChildIP: "10.0.0.5", ParentIP: "10.0.0.5", Method: "lldp", Confidence: 95}}
	res := Resolve(hints, nil)
	_, ok := res.Parents["10.0.0.5"]
	assert.False(t, ok)
}

func TestFilterSanityEdges_DropsVMUnderSwitch(t *testing.T) {
	parents := map[string]ParentCandidate{
		"10.0.0.5": {ParentIP: "10.0.0.1", Method: "lldp", Confidence: 95},
	}
	deviceType := func(ip string) string {
		if ip == "10.0.0.5" {
			return "vm"
		}
		return "switch"
	}
	FilterSanityEdges(parents, deviceType)
	assert.Empty(t, parents)
}

func TestFilterSanityEdges_DropsGatewayUnderSwitch(t *testing.T) {
	parents := map[string]ParentCandidate{
		"10.0.0.1": {ParentIP: "10.0.0.2", Method: "rtt-cluster", Confidence: 60},
	}
	deviceType := func(ip string) string {
		if ip == "10.0.0.1" {
			return "gateway"
		}
		return "switch"
	}
	FilterSanityEdges(parents, deviceType)
	assert.Empty(t, parents)
}

func TestFilterSanityEdges_KeepsLegitimateEdge(t *testing.T) {
	parents := map[string]ParentCandidate{
		"10.0.0.50": {ParentIP: "10.0.0.1", Method: "lldp", Confidence: 95},
	}
	deviceType := func(ip string) string {
		if ip == "10.0.0.50" {
			return "client"
		}
		return "switch"
	}
	FilterSanityEdges(parents, deviceType)
	assert.Len(t, parents, 1)
}
