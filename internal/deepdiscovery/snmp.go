package deepdiscovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	snmpTimeout = 3 * time.Second
	snmpRetries = 1

	oidSysDescr  = "1.3.6.1.2.1.1.1.0"
	oidSysName   = "1.3.6.1.2.1.1.5.0"
	oidBridgeMAC = "1.3.6.1.2.1.17.4.3.1"
	oidLLDPRemote = "1.0.8802.1.1.2.1.4.1.1"
	oidTPLinkWireless = "1.3.6.1.4.1.11863.6.6.1.1"
)

// SNMPSource walks sysDescr/sysName, the bridge-MIB forwarding table,
// the LLDP remote-systems table, and (for TP-Link switches) a vendor
// wireless-station OID. Multiple community strings are tried serially,
// first success wins.
type SNMPSource struct {
	Communities []string
}

func (SNMPSource) Name() string { return "snmp" }

func (s SNMPSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	communities := s.Communities
	if len(communities) == 0 {
		communities = []string{"public"}
	}

	var hints []Hint
	for _, host := range sc.KnownHosts {
		client, community := connectFirstSuccess(host.IP, communities)
		if client == nil {
			continue
		}
		hints = append(hints, enrichmentHints(host.IP, client)...)
		hints = append(hints, bridgeMACHints(host, client)...)
		hints = append(hints, lldpHints(host.IP, client)...)
		hints = append(hints, tpLinkWirelessHints(host.IP, client)...)
		_ = community
		client.Conn.Close()
	}
	return hints
}

func connectFirstSuccess(ip string, communities []string) (*gosnmp.GoSNMP, string) {
	for _, community := range communities {
		community = strings.TrimSpace(community)
		if community == "" {
			continue
		}
		client := &gosnmp.GoSNMP{
			Target:    ip,
			Port:      161,
			Community: community,
			Version:   gosnmp.Version2c,
			Timeout:   snmpTimeout,
			Retries:   snmpRetries,
		}
		if err := client.Connect(); err != nil {
			continue
		}
		if _, err := client.Get([]string{oidSysDescr}); err != nil {
			client.Conn.Close()
			continue
		}
		return client, community
	}
	return nil, ""
}

func enrichmentHints(ip string, client *gosnmp.GoSNMP) []Hint {
	result, err := client.Get([]string{oidSysDescr, oidSysName})
	if err != nil {
		return nil
	}
	data := map[string]interface{}{}
	for _, v := range result.Variables {
		s, ok := v.Value.([]byte)
		if !ok {
			continue
		}
		switch strings.TrimPrefix(v.Name, ".") {
		case oidSysDescr:
			data["sysDescr"] = string(s)
		case oidSysName:
			data["sysName"] = string(s)
		}
	}
	if len(data) == 0 {
		return nil
	}
	return []Hint{{IP: ip, Method: "snmp", Data: data}}
}

// bridgeMACHints walks the bridge-MIB forwarding table, mapping each
// learnt MAC to the port that learnt it, then infers that the port with
// the fewest learnt MACs is the closest to an edge device -- that
// device becomes the relationship's child candidate for resolve.go.
func bridgeMACHints(host HostRef, client *gosnmp.GoSNMP) []Hint {
	portMACCounts := map[string]int{}
	macToPort := map[string]string{}

	err := client.BulkWalk(oidBridgeMAC, func(pdu gosnmp.SnmpPDU) error {
		mac, ok := pdu.Value.([]byte)
		if !ok || len(mac) != 6 {
			return nil
		}
		port := pdu.Name
		macToPort[formatMAC(mac)] = port
		portMACCounts[port]++
		return nil
	})
	if err != nil {
		return nil
	}

	var hints []Hint
	for mac, port := range macToPort {
		hints = append(hints, Hint{
			ChildIP:      "", // resolved later by MAC lookup against known hosts
			ParentIP:     host.IP,
			Method:       "snmp-mac-table",
			PortMACCount: portMACCounts[port],
			Detail:       mac,
			Confidence:   90,
		})
	}
	return hints
}

func lldpHints(ip string, client *gosnmp.GoSNMP) []Hint {
	var hints []Hint
	err := client.BulkWalk(oidLLDPRemote, func(pdu gosnmp.SnmpPDU) error {
		if s, ok := pdu.Value.([]byte); ok && len(s) > 0 {
			hints = append(hints, Hint{
				ChildIP:    string(s),
				ParentIP:   ip,
				Method:     "lldp",
				Confidence: 95,
			})
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return hints
}

func tpLinkWirelessHints(ip string, client *gosnmp.GoSNMP) []Hint {
	var hints []Hint
	err := client.BulkWalk(oidTPLinkWireless, func(pdu gosnmp.SnmpPDU) error {
		if mac, ok := pdu.Value.([]byte); ok && len(mac) == 6 {
			hints = append(hints, Hint{
				IP:     ip,
				Method: "tplink-wireless",
				Data:   map[string]interface{}{"stationMac": formatMAC(mac)},
			})
		}
		return nil
	})
	if err != nil {
		return nil
	}
	return hints
}

func formatMAC(b []byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}
