package scanengine

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/go-ping/ping"
)

func tcpDialOK(ctx context.Context, ip string, port int) bool {
	dialer := net.Dialer{Timeout: livenessDial}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func icmpEchoOK(ctx context.Context, ip string) bool {
	pinger, err := ping.NewPinger(ip)
	if err != nil {
		return false
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = livenessDial

	done := make(chan bool, 1)
	pinger.OnRecv = func(*ping.Packet) { done <- true }

	go func() {
		pinger.Run()
		select {
		case done <- false:
		default:
		}
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	case <-time.After(livenessDial + 500*time.Millisecond):
		return false
	}
}

func marshalDiscoveryInfo(data map[string]interface{}) ([]byte, error) {
	return json.Marshal(data)
}
