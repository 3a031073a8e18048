// Package proxmox talks to a Proxmox VE cluster's REST API to learn
// which guest MAC addresses belong to which hypervisor, feeding the VM
// -> hypervisor relationship hint in deep discovery.
package proxmox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

const (
	component = "proxmox"
	timeout   = 10 * time.Second
)

// Client queries one Proxmox API host with a fixed API token.
type Client struct {
	apiHost     string
	tokenID     string
	tokenSecret string
	http        *http.Client
}

func New(apiHost, tokenID, tokenSecret string) *Client {
	return &Client{
		apiHost:     strings.TrimSuffix(apiHost, "/"),
		tokenID:     tokenID,
		tokenSecret: tokenSecret,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		},
	}
}

// GuestMAC pairs a guest's canonical MAC address with its hypervisor
// node name.
type GuestMAC struct {
	MAC        string
	NodeName   string
	GuestID    string
	GuestKind  string // "qemu" or "lxc"
}

// ListGuestMACs enumerates every online node, every guest on it, and
// one MAC address per guest: the first one found among its net*
// config keys. Further NICs of the same guest are not reported.
func (c *Client) ListGuestMACs(ctx context.Context) ([]GuestMAC, error) {
	nodes, err := c.listOnlineNodes(ctx)
	if err != nil {
		return nil, err
	}

	var macs []GuestMAC
	for _, node := range nodes {
		for _, kind := range []string{"qemu", "lxc"} {
			guests, err := c.listGuests(ctx, node, kind)
			if err != nil {
				continue
			}
			for _, guestID := range guests {
				mac, err := c.guestMAC(ctx, node, kind, guestID)
				if err != nil || mac == "" {
					continue
				}
				macs = append(macs, GuestMAC{MAC: mac, NodeName: node, GuestID: guestID, GuestKind: kind})
			}
		}
	}
	return macs, nil
}

func (c *Client) listOnlineNodes(ctx context.Context) ([]string, error) {
	var body struct {
		Data []struct {
			Node   string `json:"node"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/api2/json/nodes", &body); err != nil {
		return nil, err
	}
	var nodes []string
	for _, n := range body.Data {
		if n.Status == "online" {
			nodes = append(nodes, n.Node)
		}
	}
	return nodes, nil
}

func (c *Client) listGuests(ctx context.Context, node, kind string) ([]string, error) {
	var body struct {
		Data []struct {
			VMID json.Number `json:"vmid"`
		} `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api2/json/nodes/%s/%s", node, kind), &body); err != nil {
		return nil, err
	}
	var ids []string
	for _, g := range body.Data {
		ids = append(ids, g.VMID.String())
	}
	return ids, nil
}

var netLineMAC = regexp.MustCompile(`(?i)([0-9A-F]{2}(?::[0-9A-F]{2}){5})`)

func (c *Client) guestMAC(ctx context.Context, node, kind, guestID string) (string, error) {
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api2/json/nodes/%s/%s/%s/config", node, kind, guestID), &body); err != nil {
		return "", err
	}
	for key, value := range body.Data {
		if !strings.HasPrefix(key, "net") {
			continue
		}
		line, ok := value.(string)
		if !ok {
			continue
		}
		if m := netLineMAC.FindString(line); m != "" {
			return strings.ToLower(m), nil
		}
	}
	return "", nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiHost+path, nil)
	if err != nil {
		return neterr.ConfigError(component, "build request", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s=%s", c.tokenID, c.tokenSecret))

	resp, err := c.http.Do(req)
	if err != nil {
		return neterr.TransportError(component, "request "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return neterr.AuthError(component, "token rejected", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return neterr.TransportError(component, fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, path), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return neterr.ParseError(component, "decode response for "+path, err)
	}
	return nil
}
