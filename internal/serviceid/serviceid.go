// Package serviceid turns a probe.Result into a human-readable service
// identity through a fixed, ordered set of layers. The first layer that
// fires wins, and matchSource records which one it was.
package serviceid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmetallica/netcatalog/internal/probe"
)

// Identity is the ServiceIdentifier's verdict for one probed port.
type Identity struct {
	IdentifiedAs string
	Product      string
	Version      string
	MatchSource  string
	Banner       string
	HTTPTitle    string
	HTTPServer   string
	StatusCode   int
	Icon         string
}

// ScannerHint carries the port-scan driver's own guess for a port
// (name/product/version from its service-detection table, absent when
// the driver ran without -sV). It only feeds layer 10, the last resort
// before the bare "Unknown (Port N)" default.
type ScannerHint struct {
	Name    string
	Product string
	Version string
}

var titleSignatures = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)grafana`), "Grafana"},
	{regexp.MustCompile(`(?i)portainer`), "Portainer"},
	{regexp.MustCompile(`(?i)proxmox virtual environment`), "Proxmox VE"},
	{regexp.MustCompile(`(?i)home assistant`), "Home Assistant"},
	{regexp.MustCompile(`(?i)pi-?hole`), "Pi-hole"},
	{regexp.MustCompile(`(?i)synology`), "Synology DSM"},
	{regexp.MustCompile(`(?i)jellyfin`), "Jellyfin"},
	{regexp.MustCompile(`(?i)sonarr`), "Sonarr"},
	{regexp.MustCompile(`(?i)radarr`), "Radarr"},
	{regexp.MustCompile(`(?i)nextcloud`), "Nextcloud"},
	{regexp.MustCompile(`(?i)unifi`), "UniFi Controller"},
}

var serverHeaderSignatures = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)nginx`), "nginx"},
	{regexp.MustCompile(`(?i)apache`), "Apache httpd"},
	{regexp.MustCompile(`(?i)lighttpd`), "lighttpd"},
}

var cookieSignatures = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)grafana_session`), "Grafana"},
	{regexp.MustCompile(`(?i)phpsessid`), "PHP application"},
	{regexp.MustCompile(`(?i)portainer\.`), "Portainer"},
}

// portFallback maps ~40 well-known ports to a display name, used only
// once every content-based layer has failed.
var portFallback = map[int]string{
	20: "FTP-DATA", 21: "FTP", 22: "SSH", 23: "Telnet", 25: "SMTP",
	53: "DNS", 67: "DHCP", 68: "DHCP", 69: "TFTP", 80: "HTTP",
	110: "POP3", 111: "RPC", 123: "NTP", 135: "RPC", 137: "NetBIOS",
	139: "NetBIOS", 143: "IMAP", 161: "SNMP", 162: "SNMP-Trap",
	389: "LDAP", 443: "HTTPS", 445: "SMB", 465: "SMTPS", 514: "Syslog",
	587: "SMTP-Submission", 631: "IPP", 636: "LDAPS", 993: "IMAPS",
	995: "POP3S", 1883: "MQTT", 3306: "MySQL", 3389: "RDP", 5432: "PostgreSQL",
	5900: "VNC", 6379: "Redis", 8006: "Proxmox VE", 8080: "HTTP-Alt",
	8443: "HTTPS-Alt", 8883: "MQTTS", 9000: "Portainer-Alt", 27017: "MongoDB",
}

// Identify runs the layered match against a single probe result. hint
// carries whatever the port-scan driver itself guessed for this port,
// consulted only as layer 10, after every content-based layer has
// failed and before the bare "Unknown (Port N)" default.
func Identify(port int, result probe.Result, hint ScannerHint) Identity {
	id := Identity{}

	if http := result.HTTP; http != nil {
		id.StatusCode = http.StatusCode
		id.HTTPTitle = http.Extracted.Title
		id.HTTPServer = http.Headers["server"]

		if name := matchTitle(http.Extracted.Title); name != "" {
			id.IdentifiedAs = name
			id.MatchSource = "title"
			return id
		}
		if len(http.Extracted.Patterns) > 0 {
			if name := probe.NameForPattern(http.Extracted.Patterns[0]); name != "" {
				id.IdentifiedAs = name
				id.Icon = probe.IconForPattern(http.Extracted.Patterns[0])
				id.MatchSource = "body-pattern"
				return id
			}
		}
		if name := matchServerHeader(http.Headers["server"]); name != "" {
			id.IdentifiedAs = name
			id.MatchSource = "server-header"
			return id
		}
		if name := matchCookies(http.SetCookies); name != "" {
			id.IdentifiedAs = name
			id.MatchSource = "cookie"
			return id
		}
		if result.AppEndpoint != "" {
			id.IdentifiedAs = result.AppEndpoint
			id.MatchSource = "app-endpoint"
			return id
		}
		id.IdentifiedAs = genericWebService(http)
		id.MatchSource = "generic-web"
		return id
	}

	if banner := result.Banner; banner != nil {
		id.Banner = banner.Text
		if banner.Identified != "" {
			id.IdentifiedAs = banner.Identified
			id.Product = banner.Product
			id.Version = banner.Version
			id.MatchSource = "banner-identified"
			return id
		}
		if banner.Text != "" {
			id.IdentifiedAs = fmt.Sprintf("Unknown (Banner: %s)", truncate(banner.Text, 40))
			id.MatchSource = "raw-banner"
			return id
		}
	}

	if name, ok := portFallback[port]; ok {
		id.IdentifiedAs = name
		id.MatchSource = "port-fallback"
		return id
	}

	if hint.Product != "" || hint.Name != "" {
		id.IdentifiedAs = firstNonEmpty(hint.Product, hint.Name)
		id.Product = hint.Product
		id.Version = hint.Version
		id.MatchSource = "scanner-hint"
		return id
	}

	id.IdentifiedAs = fmt.Sprintf("Unknown (Port %d)", port)
	id.MatchSource = "default"
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func matchTitle(title string) string {
	for _, sig := range titleSignatures {
		if sig.re.MatchString(title) {
			return sig.name
		}
	}
	return ""
}

func matchServerHeader(server string) string {
	for _, sig := range serverHeaderSignatures {
		if sig.re.MatchString(server) {
			return sig.name
		}
	}
	return ""
}

func matchCookies(cookies []string) string {
	joined := strings.Join(cookies, ";")
	for _, sig := range cookieSignatures {
		if sig.re.MatchString(joined) {
			return sig.name
		}
	}
	return ""
}

func genericWebService(http *probe.HTTPResult) string {
	if name := matchServerHeader(http.Headers["server"]); name != "" {
		return name
	}
	if http.Extracted.Title != "" {
		return fmt.Sprintf("Web App: %s", http.Extracted.Title)
	}
	return fmt.Sprintf("HTTP Service (%d)", http.StatusCode)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
