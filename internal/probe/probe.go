// Package probe identifies what is listening on a single open TCP port:
// HTTP fingerprinting first, then a raw banner-grab fallback for
// anything that doesn't speak HTTP.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	httpTimeout    = 6 * time.Second
	httpConnect    = 3 * time.Second
	tcpTimeout     = 5 * time.Second
	tcpReadWait    = 1500 * time.Millisecond
	maxBodyBytes   = 64 * 1024
	maxBannerBytes = 2 * 1024
	maxRedirects   = 3
)

// HTTPResult is everything the Prober learned from a successful HTTP
// attempt.
type HTTPResult struct {
	Protocol   string // "http" or "https"
	StatusCode int
	Headers    map[string]string
	SetCookies []string
	Location   string
	Body       []byte
	Extracted  Extracted
}

// Extracted is what the Prober pulled out of an HTML body.
type Extracted struct {
	Title       string
	Generator   string
	Description string
	Scripts     []string
	Links       []string
	Patterns    []string
}

// BannerResult is what the Prober learned from a raw TCP banner grab.
type BannerResult struct {
	Text       string
	Identified string
	Product    string
	Version    string
	HTTPTitle  string
}

// Result is the union of everything a single (ip, port) probe produced.
type Result struct {
	HTTP        *HTTPResult
	Banner      *BannerResult
	AppEndpoint string
}

// Prober is stateless and safe for concurrent reuse across hosts.
type Prober struct {
	client *http.Client
}

func New() *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
				DialContext:         (&net.Dialer{Timeout: httpConnect}).DialContext,
				TLSHandshakeTimeout: httpConnect,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Probe runs the full protocol for one (ip, port) endpoint: HTTP first
// (tried as http then https), with an app endpoint match only when HTTP
// succeeded but yielded no title or pattern, and a raw banner grab if
// neither scheme succeeds as HTTP.
func (p *Prober) Probe(ctx context.Context, ip string, port int) Result {
	if res, ok := p.tryHTTP(ctx, "http", ip, port); ok {
		result := Result{HTTP: res}
		if res.Extracted.Title == "" && len(res.Extracted.Patterns) == 0 {
			result.AppEndpoint = p.probeAppEndpoints(ctx, "http", ip, port)
		}
		return result
	}
	if res, ok := p.tryHTTP(ctx, "https", ip, port); ok {
		result := Result{HTTP: res}
		if res.Extracted.Title == "" && len(res.Extracted.Patterns) == 0 {
			result.AppEndpoint = p.probeAppEndpoints(ctx, "https", ip, port)
		}
		return result
	}

	banner := p.bannerGrab(ctx, ip, port)
	return Result{Banner: banner}
}

func (p *Prober) tryHTTP(ctx context.Context, scheme, ip string, port int) (*HTTPResult, bool) {
	url := fmt.Sprintf("%s://%s:%d/", scheme, ip, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", "netcatalog/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.ProtoMajor != 1 && resp.ProtoMajor != 2 {
		return nil, false
	}

	body := make([]byte, 0, maxBodyBytes)
	buf := make([]byte, 4096)
	for len(body) < maxBodyBytes {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	result := &HTTPResult{
		Protocol:   scheme,
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{},
		SetCookies: resp.Header.Values("Set-Cookie"),
		Location:   resp.Header.Get("Location"),
		Body:       body,
		Extracted:  extractHTML(body),
	}
	for key := range resp.Header {
		result.Headers[strings.ToLower(key)] = resp.Header.Get(key)
	}
	return result, true
}

func extractHTML(body []byte) Extracted {
	var ex Extracted
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var inTitle bool
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		token := tokenizer.Token()
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch token.Data {
			case "title":
				inTitle = tt == html.StartTagToken
			case "meta":
				applyMeta(&ex, token)
			case "script":
				if src := attr(token, "src"); src != "" {
					ex.Scripts = append(ex.Scripts, src)
				}
			case "a", "link":
				if href := attr(token, "href"); href != "" {
					ex.Links = append(ex.Links, href)
				}
			}
		case html.TextToken:
			if inTitle && ex.Title == "" {
				ex.Title = strings.TrimSpace(token.Data)
			}
		case html.EndTagToken:
			if token.Data == "title" {
				inTitle = false
			}
		}
	}

	lower := strings.ToLower(string(body))
	for _, sig := range knownApplicationSignatures {
		if strings.Contains(lower, sig.substring) {
			ex.Patterns = append(ex.Patterns, sig.key)
		}
	}
	return ex
}

func applyMeta(ex *Extracted, token html.Token) {
	name := strings.ToLower(attr(token, "name"))
	content := attr(token, "content")
	switch name {
	case "generator":
		ex.Generator = content
	case "description":
		ex.Description = content
	}
}

func attr(token html.Token, key string) string {
	for _, a := range token.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// appEndpoints is a fixed table of (path, expected substring, app name)
// probed in batches of four when title/pattern matching found nothing.
var appEndpoints = []struct {
	path      string
	substring string
	name      string
}{
	{"/api/version", "version", "Generic API"},
	{"/manage/account/login", "portainer", "Portainer"},
	{"/api2/json/version", "data", "Proxmox VE"},
	{"/cgi-bin/luci", "luci", "OpenWrt LuCI"},
	{"/xbmc", "kodi", "Kodi"},
	{"/server-status", "apache", "Apache httpd"},
}

func (p *Prober) probeAppEndpoints(ctx context.Context, scheme, ip string, port int) string {
	const batchSize = 4
	type result struct {
		name  string
		found bool
	}

	resCh := make(chan result, len(appEndpoints))
	for i := 0; i < len(appEndpoints); i += batchSize {
		end := i + batchSize
		if end > len(appEndpoints) {
			end = len(appEndpoints)
		}
		batch := appEndpoints[i:end]
		done := make(chan struct{}, len(batch))
		for _, ep := range batch {
			go func(ep struct {
				path      string
				substring string
				name      string
			}) {
				defer func() { done <- struct{}{} }()
				reqCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
				defer cancel()
				url := fmt.Sprintf("%s://%s:%d%s", scheme, ip, port, ep.path)
				req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
				if err != nil {
					return
				}
				resp, err := p.client.Do(req)
				if err != nil {
					return
				}
				defer resp.Body.Close()
				body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
				if strings.Contains(strings.ToLower(string(body)), ep.substring) {
					resCh <- result{name: ep.name, found: true}
				}
			}(ep)
		}
		for range batch {
			<-done
		}
		select {
		case r := <-resCh:
			if r.found {
				return r.name
			}
		default:
		}
	}
	return ""
}

// bannerGrab opens a raw TCP connection, nudges protocol-specific
// servers into talking, and analyses whatever comes back.
func (p *Prober) bannerGrab(ctx context.Context, ip string, port int) *BannerResult {
	dialer := net.Dialer{Timeout: tcpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(tcpTimeout))

	if port == 25 || port == 587 {
		conn.Write([]byte("EHLO netcatalog.local\r\n"))
	}

	reader := bufio.NewReader(conn)
	buf := make([]byte, maxBannerBytes)
	conn.SetReadDeadline(time.Now().Add(tcpReadWait))
	n, _ := reader.Read(buf)

	if n == 0 {
		conn.Write([]byte("GET / HTTP/1.0\r\n\r\n"))
		conn.SetReadDeadline(time.Now().Add(tcpTimeout))
		n, _ = reader.Read(buf)
	}

	text := strings.ReplaceAll(string(buf[:n]), "\x00", "")
	return analyzeBanner(text)
}

func analyzeBanner(text string) *BannerResult {
	result := &BannerResult{Text: text}
	lower := strings.ToLower(text)

	for _, sig := range bannerSignatures {
		if strings.Contains(lower, sig.substring) {
			result.Identified = sig.name
			if m := sig.versionRe.FindStringSubmatch(text); m != nil {
				result.Product = sig.name
				if len(m) > 1 {
					result.Version = m[1]
				}
			}
			break
		}
	}

	if strings.HasPrefix(text, "HTTP/") {
		result.Identified = "HTTP"
		if idx := strings.Index(lower, "<title>"); idx >= 0 {
			end := strings.Index(lower[idx:], "</title>")
			if end > 0 {
				result.HTTPTitle = strings.TrimSpace(text[idx+7 : idx+end])
			}
		}
	}
	return result
}
