package store

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// SettingsValidator accumulates every field error across a batch before
// rejecting it, mirroring the all-or-nothing settings write contract.
type SettingsValidator struct{}

func NewSettingsValidator() *SettingsValidator { return &SettingsValidator{} }

type fieldValidator func(value string) error

var settingsSchema = map[string]fieldValidator{
	"scan_network":             validateCIDR,
	"scan_ports":                validatePortRange,
	"scan_interval":             validateIntRange(1, 1440),
	"scan_enabled":              validateBool,
	"snmp_community":            validateCommunityList,
	"deep_discovery_enabled":    validateBool,
	"deep_discovery_interval":   validateIntRange(5, 1440),
	"unifi_url":                 validateURL,
	"unifi_secret_ref":          validateTokenLength(200),
}

// Validate checks the whole batch and returns a single combined error
// naming every offending key, or nil if every key is recognised and
// every value is valid.
func (v *SettingsValidator) Validate(batch map[string]string) error {
	var errs []string
	for key, value := range batch {
		fn, ok := settingsSchema[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: unknown setting", key))
			continue
		}
		if err := fn(value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCIDR(value string) error {
	ip, network, err := net.ParseCIDR(value)
	if err != nil {
		return fmt.Errorf("not a valid CIDR: %w", err)
	}
	if ip.To4() == nil {
		return fmt.Errorf("only IPv4 CIDRs are supported")
	}
	ones, _ := network.Mask.Size()
	if ones < 8 || ones > 32 {
		return fmt.Errorf("prefix length must be between /8 and /32, got /%d", ones)
	}
	return nil
}

func validatePortRange(value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("empty port token")
		}
		bounds := strings.SplitN(part, "-", 2)
		lo, err := strconv.Atoi(bounds[0])
		if err != nil || lo < 1 || lo > 65535 {
			return fmt.Errorf("invalid port %q", bounds[0])
		}
		if len(bounds) == 1 {
			continue
		}
		hi, err := strconv.Atoi(bounds[1])
		if err != nil || hi < 1 || hi > 65535 {
			return fmt.Errorf("invalid port %q", bounds[1])
		}
		if hi < lo {
			return fmt.Errorf("range %q is reversed", part)
		}
	}
	return nil
}

func validateIntRange(min, max int) fieldValidator {
	return func(value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		if n < min || n > max {
			return fmt.Errorf("must be between %d and %d, got %d", min, max, n)
		}
		return nil
	}
}

func validateBool(value string) error {
	if value != "true" && value != "false" {
		return fmt.Errorf(`must be "true" or "false"`)
	}
	return nil
}

func validateCommunityList(value string) error {
	for _, tok := range strings.Split(value, ",") {
		if strings.TrimSpace(tok) != "" {
			return nil
		}
	}
	return fmt.Errorf("must contain at least one non-empty community token")
}

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func validateTokenLength(max int) fieldValidator {
	return func(value string) error {
		if len(value) > max {
			return fmt.Errorf("must be at most %d characters, got %d", max, len(value))
		}
		return nil
	}
}
