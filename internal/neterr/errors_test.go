package neterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	err := SingletonBusyError("scanengine", "scan already running")
	assert.True(t, IsKind(err, KindSingletonBusy))
	assert.False(t, IsKind(err, KindConfig))
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	inner := ToolMissingError("portscan", "nmap not found", errors.New("exec: nmap: not found"))
	wrapped := fmt.Errorf("pipeline failed: %w", inner)
	assert.True(t, IsKind(wrapped, KindToolMissing))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ConfigError("store", "bad settings", nil), 400},
		{ParseError("portscan", "bad xml", nil), 400},
		{AuthError("integrations", "bad token", nil), 401},
		{ToolMissingError("portscan", "nmap missing", nil), 503},
		{SingletonBusyError("scanengine", "busy"), 409},
		{TransportError("integrations", "dial failed", nil), 502},
		{StoreError("store", "write failed", nil), 500},
		{errors.New("untyped error"), 500},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err))
	}
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := StoreError("store", "upsert host", errors.New("constraint violation"))
	assert.Contains(t, err.Error(), "store")
	assert.Contains(t, err.Error(), "upsert host")
	assert.Contains(t, err.Error(), "constraint violation")
}

func TestError_MessageWithoutCause(t *testing.T) {
	err := SingletonBusyError("scanengine", "scan already running")
	assert.Equal(t, "[scanengine] scan already running", err.Error())
}
