// Package avm speaks TR-064 (SOAP over TCP:49000, RFC 2617 digest auth)
// to a FRITZ!Box, pulling wireless station and wired host lists for
// topology discovery.
package avm

import (
	"bufio"
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

const (
	component = "avm"
	timeout   = 10 * time.Second
	port      = 49000
)

// Client holds one FritzBox's digest credentials. Nonce state is
// per-request: every call re-runs the 401-then-retry dance, since the
// box may rotate nonces between calls.
type Client struct {
	host     string
	username string
	password string
	http     *http.Client
}

func New(host, username, password string) *Client {
	return &Client{
		host:     host,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

// DeviceInfo is the result of DeviceInfo#GetInfo.
type DeviceInfo struct {
	Model    string
	Firmware string
	Serial   string
}

func (c *Client) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	body, err := c.call(ctx, "deviceinfo", "DeviceInfo:1", "GetInfo", "")
	if err != nil {
		return nil, err
	}
	info := &DeviceInfo{
		Model:    extractTag(body, "NewModelName"),
		Firmware: extractTag(body, "NewSoftwareVersion"),
		Serial:   extractTag(body, "NewSerialNumber"),
	}
	return info, nil
}

// WirelessStation is one wireless client associated to the box.
type WirelessStation struct {
	MAC    string
	IP     string
	Signal int
	Speed  int
}

// ListWirelessStations iterates index 0..29 until the device returns a
// SOAP fault (index out of range), collecting every associated device.
func (c *Client) ListWirelessStations(ctx context.Context) ([]WirelessStation, error) {
	var stations []WirelessStation
	for i := 0; i < 30; i++ {
		args := fmt.Sprintf("<NewAssociatedDeviceIndex>%d</NewAssociatedDeviceIndex>", i)
		body, err := c.call(ctx, "wlanconfig1", "WLANConfiguration:1", "GetGenericAssociatedDeviceInfo", args)
		if err != nil {
			if neterr.IsKind(err, neterr.KindTransport) {
				break
			}
			return stations, err
		}
		if strings.Contains(body, "<faultcode>") {
			break
		}
		mac := extractTag(body, "NewAssociatedDeviceMACAddress")
		if mac == "" {
			break
		}
		stations = append(stations, WirelessStation{
			MAC:    strings.ToLower(mac),
			IP:     extractTag(body, "NewAssociatedDeviceIPAddress"),
			Signal: atoiSafe(extractTag(body, "NewX_AVM-DE_SignalStrength")),
			Speed:  atoiSafe(extractTag(body, "NewX_AVM-DE_Speed")),
		})
	}
	return stations, nil
}

// HostEntry is one row from Hosts#GetHostList, covering both wired and
// wireless clients.
type HostEntry struct {
	IP            string
	MAC           string
	Hostname      string
	InterfaceType string
	Active        bool
}

func (c *Client) ListHosts(ctx context.Context) ([]HostEntry, error) {
	body, err := c.call(ctx, "hosts1", "Hosts:1", "GetHostList", "")
	if err != nil {
		return nil, err
	}
	csvPath := extractTag(body, "NewX_AVM-DE_HostListPath")
	if csvPath == "" {
		return nil, neterr.ParseError(component, "no host list path returned", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s:%d%s", c.host, port, csvPath), nil)
	if err != nil {
		return nil, neterr.ConfigError(component, "build host list request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, neterr.TransportError(component, "fetch host list", err)
	}
	defer resp.Body.Close()

	reader := csv.NewReader(bufio.NewReader(resp.Body))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, neterr.ParseError(component, "parse host list csv", err)
	}

	var hosts []HostEntry
	for _, rec := range records {
		if len(rec) < 5 {
			continue
		}
		hosts = append(hosts, HostEntry{
			IP:            rec[0],
			MAC:           strings.ToLower(rec[1]),
			Hostname:      rec[2],
			InterfaceType: rec[3],
			Active:        rec[4] == "1",
		})
	}
	return hosts, nil
}

// call performs the full two-step digest-auth dance: an initial
// unauthenticated request, which is expected to 401 with a
// WWW-Authenticate challenge, followed by a retry carrying the computed
// digest response.
func (c *Client) call(ctx context.Context, controlPath, service, action, args string) (string, error) {
	envelope := soapEnvelope(service, action, args)

	resp, err := c.doSOAP(ctx, controlPath, service, action, envelope, "")
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return readAndClose(resp)
	}
	challenge := parseDigestChallenge(resp.Header.Get("WWW-Authenticate"))
	resp.Body.Close()

	authHeader, err := c.digestResponse(challenge, controlPath)
	if err != nil {
		return "", err
	}
	resp, err = c.doSOAP(ctx, controlPath, service, action, envelope, authHeader)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return "", neterr.AuthError(component, "digest auth rejected after retry", nil)
	}
	return readAndClose(resp)
}

func (c *Client) doSOAP(ctx context.Context, controlPath, service, action, envelope, authHeader string) (*http.Response, error) {
	url := fmt.Sprintf("http://%s:%d/upnp/control/%s", c.host, port, controlPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(envelope))
	if err != nil {
		return nil, neterr.ConfigError(component, "build SOAP request", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", fmt.Sprintf("urn:dslforum-org:service:%s#%s", service, action))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, neterr.TransportError(component, "SOAP request to "+controlPath, err)
	}
	return resp, nil
}

func readAndClose(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", neterr.ParseError(component, "read SOAP response", err)
	}
	return string(body), nil
}

type digestChallenge struct {
	realm string
	nonce string
	qop   string
}

var challengeFieldRe = regexp.MustCompile(`(\w+)="([^"]*)"`)

func parseDigestChallenge(header string) digestChallenge {
	c := digestChallenge{}
	for _, m := range challengeFieldRe.FindAllStringSubmatch(header, -1) {
		switch m[1] {
		case "realm":
			c.realm = m[2]
		case "nonce":
			c.nonce = m[2]
		case "qop":
			c.qop = m[2]
		}
	}
	return c
}

func (c *Client) digestResponse(challenge digestChallenge, uri string) (string, error) {
	cnonce, err := randomHex(8)
	if err != nil {
		return "", neterr.ConfigError(component, "generate cnonce", err)
	}
	nc := "00000001"

	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", c.username, challenge.realm, c.password))
	ha2 := md5Hex(fmt.Sprintf("POST:/upnp/control/%s", uri))
	response := md5Hex(strings.Join([]string{ha1, challenge.nonce, nc, cnonce, challenge.qop, ha2}, ":"))

	header := fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="/upnp/control/%s", qop=%s, nc=%s, cnonce="%s", response="%s"`,
		c.username, challenge.realm, challenge.nonce, uri, challenge.qop, nc, cnonce, response,
	)
	return header, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func soapEnvelope(service, action, args string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body><u:%s xmlns:u="urn:dslforum-org:service:%s">%s</u:%s></s:Body>
</s:Envelope>`, action, service, args, action)
}

func extractTag(body, tag string) string {
	re := regexp.MustCompile(fmt.Sprintf(`(?s)<%s[^>]*>(.*?)</%s>`, tag, tag))
	m := re.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
