package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HostStatus is the liveness state of a discovered host.
type HostStatus string

const (
	HostStatusUp      HostStatus = "up"
	HostStatusDown    HostStatus = "down"
	HostStatusUnknown HostStatus = "unknown"
)

// ServiceState is whether an observed TCP endpoint is currently open.
type ServiceState string

const (
	ServiceStateOpen   ServiceState = "open"
	ServiceStateClosed ServiceState = "closed"
)

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusError     ScanStatus = "error"
)

// AvailabilityStatus records a single up/down observation for a host.
type AvailabilityStatus string

const (
	AvailabilityUp   AvailabilityStatus = "up"
	AvailabilityDown AvailabilityStatus = "down"
)

// Host is a discovered IPv4 endpoint.
//
// DiscoveryInfo holds the last result of each deep-discovery evidence
// source, keyed by method name, plus a "_lastDiscovery" timestamp; it is
// stored as a JSON column and written by the scan engine from deep-discovery
// results via Store.UpdateDiscoveryInfo.
type Host struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	IPAddress  string     `gorm:"not null;uniqueIndex" json:"ip_address"`
	Hostname   string     `json:"hostname,omitempty"`
	MAC        string     `json:"mac,omitempty"`
	Vendor     string     `json:"vendor,omitempty"`
	OSGuess    string     `json:"os_guess,omitempty"`
	Status     HostStatus `gorm:"default:unknown" json:"status"`
	DeviceType string     `json:"device_type,omitempty"` // operator-forced override; empty means "let the classifier decide"

	ParentHostID *uuid.UUID `gorm:"type:uuid;index" json:"parent_host_id,omitempty"`

	DiscoveryInfo []byte `gorm:"type:json" json:"-"`

	// Integration credentials: the columns below hold only the non-secret
	// half of each credential. The secret half (token secret / password)
	// lives in the OS keychain under the Ref, via internal/secrets.
	ProxmoxAPIHost   string `json:"proxmox_api_host,omitempty"`
	ProxmoxTokenID   string `json:"proxmox_token_id,omitempty"`
	ProxmoxSecretRef string `json:"-"`

	FritzBoxHost     string `json:"fritzbox_host,omitempty"`
	FritzBoxUsername string `json:"fritzbox_username,omitempty"`
	FritzBoxSecretRef string `json:"-"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (Host) TableName() string { return "hosts" }

func (h *Host) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Status == "" {
		h.Status = HostStatusUnknown
	}
	now := timeNow()
	if h.FirstSeen.IsZero() {
		h.FirstSeen = now
	}
	if h.LastSeen.IsZero() {
		h.LastSeen = now
	}
	return nil
}

// Service is an open TCP endpoint observed on a Host.
type Service struct {
	ID       uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	HostID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_host_port_proto" json:"host_id"`
	Port     int          `gorm:"not null;uniqueIndex:idx_host_port_proto" json:"port"`
	Protocol string       `gorm:"not null;default:tcp;uniqueIndex:idx_host_port_proto" json:"protocol"`
	State    ServiceState `gorm:"default:open" json:"state"`

	ServiceName  string `json:"service_name,omitempty"`
	Product      string `json:"product,omitempty"`
	Version      string `json:"version,omitempty"`
	Info         string `json:"info,omitempty"`
	Banner       string `json:"banner,omitempty"`
	HTTPTitle    string `json:"http_title,omitempty"`
	HTTPServer   string `json:"http_server,omitempty"`
	IdentifiedAs string `json:"identified_as,omitempty"`
	ExtraInfo    []byte `gorm:"type:json" json:"extra_info,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

func (Service) TableName() string { return "services" }

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.State == "" {
		s.State = ServiceStateOpen
	}
	if s.Protocol == "" {
		s.Protocol = "tcp"
	}
	now := timeNow()
	if s.FirstSeen.IsZero() {
		s.FirstSeen = now
	}
	if s.LastSeen.IsZero() {
		s.LastSeen = now
	}
	return nil
}

// Scan is one run of the active scan pipeline.
type Scan struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Network       string     `gorm:"not null" json:"network"`
	Status        ScanStatus `gorm:"default:running" json:"status"`
	HostsFound    int        `json:"hosts_found"`
	ServicesFound int        `json:"services_found"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func (Scan) TableName() string { return "scans" }

func (s *Scan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = ScanStatusRunning
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = timeNow()
	}
	return nil
}

// AvailabilitySample is one up/down observation for a host, appended once
// per scan with a shared CheckedAt timestamp across the whole batch.
type AvailabilitySample struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	HostID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"host_id"`
	CheckedAt time.Time          `gorm:"index" json:"checked_at"`
	Status    AvailabilityStatus `json:"status"`
}

func (AvailabilitySample) TableName() string { return "availability_samples" }

// Setting is a single validated key/value configuration row.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

// timeNow is a var, not a direct time.Now() call, so tests can freeze it.
var timeNow = time.Now
