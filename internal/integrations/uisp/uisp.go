// Package uisp queries a Ubiquiti UISP controller for APs/switches and
// their connected wireless stations.
package uisp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

const (
	component = "uisp"
	timeout   = 15 * time.Second
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		},
	}
}

// Device is one managed AP or switch.
type Device struct {
	ID       string
	IP       string
	Name     string
	Active   bool
	DeviceType string // "aircube" or "airmax"
}

// Station is one wireless client associated to a Device.
type Station struct {
	MAC string
	IP  string
}

func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var raw []struct {
		ID         string `json:"id"`
		Identification struct {
			Name string `json:"name"`
		} `json:"identification"`
		Overview struct {
			Status string `json:"status"`
			IpAddress string `json:"ipAddress"`
		} `json:"overview"`
	}
	if err := c.get(ctx, "/nms/api/v2.1/devices", &raw); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(raw))
	for _, d := range raw {
		devices = append(devices, Device{
			ID:     d.ID,
			IP:     stripCIDR(d.Overview.IpAddress),
			Name:   d.Identification.Name,
			Active: strings.EqualFold(d.Overview.Status, "active"),
		})
	}
	return devices, nil
}

// ListStations fetches every wireless station for every active device,
// trying the aircube endpoint first and falling back to airmax, fully
// in parallel per device.
func (c *Client) ListStations(ctx context.Context, devices []Device) (map[string][]Station, error) {
	result := make(map[string][]Station)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, d := range devices {
		if !d.Active {
			continue
		}
		wg.Add(1)
		go func(d Device) {
			defer wg.Done()
			stations, err := c.deviceStations(ctx, d.ID)
			if err != nil || len(stations) == 0 {
				return
			}
			mu.Lock()
			result[d.ID] = stations
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return result, nil
}

func (c *Client) deviceStations(ctx context.Context, deviceID string) ([]Station, error) {
	for _, kind := range []string{"aircubes", "airmaxes"} {
		var raw []struct {
			MAC string `json:"mac"`
			IP  string `json:"ipAddress"`
		}
		path := fmt.Sprintf("/nms/api/v2.1/devices/%s/%s/stations", kind, deviceID)
		err := c.get(ctx, path, &raw)
		if err == nil {
			stations := make([]Station, 0, len(raw))
			for _, s := range raw {
				stations = append(stations, Station{MAC: strings.ToLower(s.MAC), IP: stripCIDR(s.IP)})
			}
			return stations, nil
		}
	}
	return nil, neterr.TransportError(component, "no station endpoint responded for device "+deviceID, nil)
}

func stripCIDR(ip string) string {
	if idx := strings.Index(ip, "/"); idx >= 0 {
		return ip[:idx]
	}
	return ip
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return neterr.ConfigError(component, "build request", err)
	}
	req.Header.Set("x-auth-token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return neterr.TransportError(component, "request "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
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
