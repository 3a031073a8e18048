package deepdiscovery

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"time"
)

const (
	ssdpAddr       = "239.255.255.250:1900"
	ssdpCollectFor = 6 * time.Second
)

var ssdpRequest = []byte("M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 3\r\n" +
	"ST: ssdp:all\r\n\r\n")

// SSDPSource broadcasts two M-SEARCH requests and enriches every
// responding IP with its raw response headers.
type SSDPSource struct{}

func (SSDPSource) Name() string { return "ssdp" }

func (SSDPSource) Gather(ctx context.Context, sc SourceContext) []Hint {
	addr, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return nil
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil
	}
	defer conn.Close()

	send := func() {
		conn.WriteToUDP(ssdpRequest, addr)
	}
	send()
	go func() {
		select {
		case <-time.After(1500 * time.Millisecond):
			send()
		case <-ctx.Done():
		}
	}()

	deadline := time.Now().Add(ssdpCollectFor)
	conn.SetReadDeadline(deadline)

	byIP := make(map[string]map[string]interface{})
	buf := make([]byte, 4096)
	for {
		if time.Now().After(deadline) {
			break
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		ip := from.IP.String()
		if _, ok := byIP[ip]; ok {
			continue
		}
		byIP[ip] = parseSSDPResponse(buf[:n])
	}

	hints := make([]Hint, 0, len(byIP))
	for ip, data := range byIP {
		hints = append(hints, Hint{IP: ip, Method: "ssdp", Data: data})
	}
	return hints
}

func parseSSDPResponse(data []byte) map[string]interface{} {
	headers := map[string]interface{}{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		headers[key] = value
	}
	return headers
}
