package deepdiscovery

import "errors"

var (
	errNotIPv4    = errors.New("deepdiscovery: not an IPv4 address")
	errNoResponse = errors.New("deepdiscovery: no response")
)
