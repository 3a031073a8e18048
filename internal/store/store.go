// Package store is the sole owner of persisted state: hosts, services,
// scans, availability history, and settings. It is the only component
// allowed to touch the database, so that scanner and discovery writes to
// disjoint columns on the same host row stay safe without row locks.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

const (
	serviceCloseGrace   = 2 * time.Hour
	hostDownGrace       = 2 * time.Hour
	availabilityRetain  = 30 * 24 * time.Hour
	component           = "store"
)

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, neterr.StoreError(component, "open database", err)
	}
	if err := db.AutoMigrate(&Host{}, &Service{}, &Scan{}, &AvailabilitySample{}, &Setting{}); err != nil {
		return nil, neterr.StoreError(component, "auto-migrate schema", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecoverStaleScans forces any row left 'running' from a prior process
// lifetime to 'error'. Called once at startup.
func (s *Store) RecoverStaleScans() error {
	now := timeNow()
	res := s.db.Model(&Scan{}).
		Where("status = ?", ScanStatusRunning).
		Updates(map[string]interface{}{
			"status":      ScanStatusError,
			"error":       "server restarted",
			"finished_at": now,
		})
	if res.Error != nil {
		return neterr.StoreError(component, "recover stale scans", res.Error)
	}
	return nil
}

func (s *Store) CreateScan(network string) (*Scan, error) {
	scan := &Scan{Network: network, Status: ScanStatusRunning}
	if err := s.db.Create(scan).Error; err != nil {
		return nil, neterr.StoreError(component, "create scan", err)
	}
	return scan, nil
}

func (s *Store) FinishScan(id uuid.UUID, status ScanStatus, hostsFound, servicesFound int, errMsg string) error {
	now := timeNow()
	res := s.db.Model(&Scan{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         status,
		"hosts_found":    hostsFound,
		"services_found": servicesFound,
		"error":          errMsg,
		"finished_at":    now,
	})
	if res.Error != nil {
		return neterr.StoreError(component, "finalize scan", res.Error)
	}
	return nil
}

// UpsertHost creates a host row for ip if absent, otherwise updates only
// the non-empty fields supplied, preserving firstSeen and advancing
// lastSeen/updatedAt. Returns the resulting row.
func (s *Store) UpsertHost(ip string, fields Host) (*Host, error) {
	var existing Host
	err := s.db.Where("ip_address = ?", ip).First(&existing).Error
	now := timeNow()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		fields.IPAddress = ip
		fields.FirstSeen = now
		fields.LastSeen = now
		fields.UpdatedAt = now
		if err := s.db.Create(&fields).Error; err != nil {
			return nil, neterr.StoreError(component, "create host", err)
		}
		return &fields, nil
	}
	if err != nil {
		return nil, neterr.StoreError(component, "lookup host", err)
	}

	updates := map[string]interface{}{"last_seen": now, "updated_at": now}
	coalesceString(updates, "hostname", fields.Hostname)
	coalesceString(updates, "mac", fields.MAC)
	coalesceString(updates, "vendor", fields.Vendor)
	coalesceString(updates, "os_guess", fields.OSGuess)
	if fields.Status != "" {
		updates["status"] = fields.Status
	}
	if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
		return nil, neterr.StoreError(component, "update host", err)
	}
	if err := s.db.Where("ip_address = ?", ip).First(&existing).Error; err != nil {
		return nil, neterr.StoreError(component, "reload host", err)
	}
	return &existing, nil
}

func coalesceString(updates map[string]interface{}, column, value string) {
	if value != "" {
		updates[column] = value
	}
}

// UpsertService applies the coalesce-on-empty upsert rule for a single
// (hostID, port, protocol) endpoint.
func (s *Store) UpsertService(hostID uuid.UUID, svc Service) (*Service, error) {
	if svc.Protocol == "" {
		svc.Protocol = "tcp"
	}
	var existing Service
	err := s.db.Where("host_id = ? AND port = ? AND protocol = ?", hostID, svc.Port, svc.Protocol).First(&existing).Error
	now := timeNow()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		svc.HostID = hostID
		svc.State = ServiceStateOpen
		svc.FirstSeen = now
		svc.LastSeen = now
		if err := s.db.Create(&svc).Error; err != nil {
			return nil, neterr.StoreError(component, "create service", err)
		}
		return &svc, nil
	}
	if err != nil {
		return nil, neterr.StoreError(component, "lookup service", err)
	}

	updates := map[string]interface{}{"last_seen": now, "state": ServiceStateOpen}
	coalesceString(updates, "service_name", svc.ServiceName)
	coalesceString(updates, "product", svc.Product)
	coalesceString(updates, "version", svc.Version)
	coalesceString(updates, "info", svc.Info)
	coalesceString(updates, "banner", svc.Banner)
	coalesceString(updates, "http_title", svc.HTTPTitle)
	coalesceString(updates, "http_server", svc.HTTPServer)
	coalesceString(updates, "identified_as", svc.IdentifiedAs)
	if len(svc.ExtraInfo) > 0 {
		updates["extra_info"] = svc.ExtraInfo
	}
	if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
		return nil, neterr.StoreError(component, "update service", err)
	}
	if err := s.db.Where("host_id = ? AND port = ? AND protocol = ?", hostID, svc.Port, svc.Protocol).First(&existing).Error; err != nil {
		return nil, neterr.StoreError(component, "reload service", err)
	}
	return &existing, nil
}

// MarkHostsUpAndSeen transitions every host in aliveIDs to up and
// advances lastSeen/updatedAt, regardless of whether it had any open
// ports this scan. Every host present in the ping-sweep/port-scan
// union must end the scan as up with lastSeen >= the scan's start.
func (s *Store) MarkHostsUpAndSeen(aliveIDs []uuid.UUID, now time.Time) error {
	if len(aliveIDs) == 0 {
		return nil
	}
	if err := s.db.Model(&Host{}).Where("id IN ?", aliveIDs).
		Updates(map[string]interface{}{"status": HostStatusUp, "last_seen": now, "updated_at": now}).Error; err != nil {
		return neterr.StoreError(component, "mark hosts up", err)
	}
	return nil
}

// MarkHostsDownGraceful transitions every host not in aliveIDs to down,
// but only if its lastSeen is older than the two-hour grace window.
func (s *Store) MarkHostsDownGraceful(aliveIDs []uuid.UUID, now time.Time) error {
	cutoff := now.Add(-hostDownGrace)
	q := s.db.Model(&Host{}).Where("last_seen < ?", cutoff)
	if len(aliveIDs) > 0 {
		q = q.Where("id NOT IN ?", aliveIDs)
	}
	if err := q.Update("status", HostStatusDown).Error; err != nil {
		return neterr.StoreError(component, "mark hosts down", err)
	}
	return nil
}

// MarkServicesClosedGraceful closes every service on hostID not present
// in portsSeen, but only if its lastSeen predates the grace window.
func (s *Store) MarkServicesClosedGraceful(hostID uuid.UUID, portsSeen []int, now time.Time) error {
	cutoff := now.Add(-serviceCloseGrace)
	q := s.db.Model(&Service{}).Where("host_id = ? AND last_seen < ?", hostID, cutoff)
	if len(portsSeen) > 0 {
		q = q.Where("port NOT IN ?", portsSeen)
	}
	if err := q.Update("state", ServiceStateClosed).Error; err != nil {
		return neterr.StoreError(component, "mark services closed", err)
	}
	return nil
}

// WriteAvailabilitySamples inserts one sample per existing host, sharing
// checkedAt, then garbage-collects rows older than the retention window.
func (s *Store) WriteAvailabilitySamples(aliveIDs map[uuid.UUID]bool, checkedAt time.Time) error {
	var hosts []Host
	if err := s.db.Select("id").Find(&hosts).Error; err != nil {
		return neterr.StoreError(component, "list hosts for availability", err)
	}

	samples := make([]AvailabilitySample, 0, len(hosts))
	for _, h := range hosts {
		status := AvailabilityDown
		if aliveIDs[h.ID] {
			status = AvailabilityUp
		}
		samples = append(samples, AvailabilitySample{HostID: h.ID, CheckedAt: checkedAt, Status: status})
	}
	if len(samples) > 0 {
		if err := s.db.Create(&samples).Error; err != nil {
			return neterr.StoreError(component, "insert availability samples", err)
		}
	}

	cutoff := checkedAt.Add(-availabilityRetain)
	if err := s.db.Where("checked_at < ?", cutoff).Delete(&AvailabilitySample{}).Error; err != nil {
		return neterr.StoreError(component, "gc availability samples", err)
	}
	return nil
}

func (s *Store) ListHosts() ([]Host, error) {
	var hosts []Host
	if err := s.db.Order("ip_address").Find(&hosts).Error; err != nil {
		return nil, neterr.StoreError(component, "list hosts", err)
	}
	return hosts, nil
}

func (s *Store) GetHostByIP(ip string) (*Host, error) {
	var h Host
	if err := s.db.Where("ip_address = ?", ip).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, neterr.StoreError(component, "get host by ip", err)
	}
	return &h, nil
}

func (s *Store) GetHost(id uuid.UUID) (*Host, error) {
	var h Host
	if err := s.db.First(&h, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, neterr.StoreError(component, "get host", err)
	}
	return &h, nil
}

// DeleteHost removes a host, cascading to its services and availability
// samples and clearing any children's parentHostId.
func (s *Store) DeleteHost(id uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Host{}).Where("parent_host_id = ?", id).Update("parent_host_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id = ?", id).Delete(&Service{}).Error; err != nil {
			return err
		}
		if err := tx.Where("host_id = ?", id).Delete(&AvailabilitySample{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Host{}, "id = ?", id).Error
	})
}

// SetDeviceType applies an operator-forced override; an empty value
// reverts the host to letting the classifier decide.
func (s *Store) SetDeviceType(id uuid.UUID, deviceType string) error {
	if err := s.db.Model(&Host{}).Where("id = ?", id).Update("device_type", deviceType).Error; err != nil {
		return neterr.StoreError(component, "set device type", err)
	}
	return nil
}

// SetProxmoxCredentials stores the non-secret half of a Proxmox
// integration credential; secretRef is an opaque reference into
// internal/secrets, never the token itself.
func (s *Store) SetProxmoxCredentials(id uuid.UUID, apiHost, tokenID, secretRef string) error {
	updates := map[string]interface{}{
		"proxmox_api_host":   apiHost,
		"proxmox_token_id":   tokenID,
		"proxmox_secret_ref": secretRef,
	}
	if err := s.db.Model(&Host{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return neterr.StoreError(component, "set proxmox credentials", err)
	}
	return nil
}

// SetFritzBoxCredentials stores the non-secret half of an AVM/FRITZ!Box
// integration credential; secretRef is an opaque reference into
// internal/secrets, never the password itself.
func (s *Store) SetFritzBoxCredentials(id uuid.UUID, host, username, secretRef string) error {
	updates := map[string]interface{}{
		"fritz_box_host":      host,
		"fritz_box_username":  username,
		"fritz_box_secret_ref": secretRef,
	}
	if err := s.db.Model(&Host{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return neterr.StoreError(component, "set fritzbox credentials", err)
	}
	return nil
}

func (s *Store) ListServices(hostID uuid.UUID) ([]Service, error) {
	var services []Service
	if err := s.db.Where("host_id = ?", hostID).Order("port").Find(&services).Error; err != nil {
		return nil, neterr.StoreError(component, "list services", err)
	}
	return services, nil
}

// GetSettings returns every stored key/value pair.
func (s *Store) GetSettings() (map[string]string, error) {
	var rows []Setting
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, neterr.StoreError(component, "list settings", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

func (s *Store) GetSetting(key, fallback string) string {
	var row Setting
	if err := s.db.Where("key = ?", key).First(&row).Error; err != nil {
		return fallback
	}
	return row.Value
}

// WriteSettings validates the whole batch, then writes it atomically; an
// invalid batch leaves every existing value untouched.
func (s *Store) WriteSettings(batch map[string]string) error {
	if err := NewSettingsValidator().Validate(batch); err != nil {
		return neterr.ConfigError(component, err.Error(), nil)
	}

	now := timeNow()
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range batch {
			row := Setting{Key: key, Value: value, UpdatedAt: now}
			if err := tx.Save(&row).Error; err != nil {
				return neterr.StoreError(component, "write setting "+key, err)
			}
		}
		return nil
	})
}

// ApplyHintAssignments performs the "clear auto parents then reassign"
// step as a single transaction, so external readers never observe a
// partially-applied topology.
func (s *Store) ApplyHintAssignments(assignments map[uuid.UUID]uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Host{}).
			Where("parent_host_id IS NOT NULL AND (device_type IS NULL OR device_type = '')").
			Update("parent_host_id", nil).Error; err != nil {
			return err
		}
		for child, parent := range assignments {
			if err := tx.Model(&Host{}).
				Where("id = ? AND (device_type IS NULL OR device_type = '')", child).
				Update("parent_host_id", parent).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateDiscoveryInfo overwrites the discoveryInfo JSON blob for a host.
func (s *Store) UpdateDiscoveryInfo(id uuid.UUID, data []byte) error {
	if err := s.db.Model(&Host{}).Where("id = ?", id).Update("discovery_info", data).Error; err != nil {
		return neterr.StoreError(component, "update discovery info", err)
	}
	return nil
}
