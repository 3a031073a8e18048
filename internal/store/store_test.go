package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertHost_PreservesFirstSeenAndAdvancesLastSeen(t *testing.T) {
	s := newTestStore(t)

	h1, err := s.UpsertHost("10.0.0.5", Host{Hostname: "box"})
	require.NoError(t, err)
	firstSeen := h1.FirstSeen

	time.Sleep(2 * time.Millisecond)
	h2, err := s.UpsertHost("10.0.0.5", Host{Vendor: "Acme"})
	require.NoError(t, err)

	assert.True(t, firstSeen.Equal(h2.FirstSeen), "firstSeen must be preserved on re-observe")
	assert.True(t, !h2.LastSeen.Before(h1.LastSeen))
	assert.Equal(t, "box", h2.Hostname, "empty hostname on re-observe must not clobber the existing value")
	assert.Equal(t, "Acme", h2.Vendor)
}

func TestUpsertHost_EmptyFieldsDoNotOverwrite(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertHost("10.0.0.6", Host{Hostname: "original", MAC: "aa:bb:cc:dd:ee:ff"})
	require.NoError(t, err)

	updated, err := s.UpsertHost("10.0.0.6", Host{Hostname: "", MAC: ""})
	require.NoError(t, err)

	assert.Equal(t, "original", updated.Hostname)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", updated.MAC)
}

func TestUpsertService_CoalesceOnEmptyLWW(t *testing.T) {
	s := newTestStore(t)
	host, err := s.UpsertHost("10.0.0.7", Host{})
	require.NoError(t, err)

	svc, err := s.UpsertService(host.ID, Service{Port: 80, Banner: "nginx/1.25.3", HTTPTitle: "Grafana"})
	require.NoError(t, err)
	assert.Equal(t, "nginx/1.25.3", svc.Banner)

	reObserved, err := s.UpsertService(host.ID, Service{Port: 80, Banner: "", HTTPTitle: ""})
	require.NoError(t, err)

	assert.Equal(t, "nginx/1.25.3", reObserved.Banner, "empty banner on re-observe must preserve the prior value")
	assert.Equal(t, "Grafana", reObserved.HTTPTitle)
	assert.Equal(t, ServiceStateOpen, reObserved.State)
}

func TestUpsertService_NonEmptyFieldsOverwrite(t *testing.T) {
	s := newTestStore(t)
	host, err := s.UpsertHost("10.0.0.8", Host{})
	require.NoError(t, err)

	_, err = s.UpsertService(host.ID, Service{Port: 443, IdentifiedAs: "Unknown (Port 443)"})
	require.NoError(t, err)

	updated, err := s.UpsertService(host.ID, Service{Port: 443, IdentifiedAs: "Grafana"})
	require.NoError(t, err)
	assert.Equal(t, "Grafana", updated.IdentifiedAs)
}

func TestMarkHostsUpAndSeen_RevivesPortlessHost(t *testing.T) {
	s := newTestStore(t)
	host, err := s.UpsertHost("10.0.0.14", Host{})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", host.ID).
		Updates(map[string]interface{}{"status": HostStatusDown, "last_seen": now.Add(-3 * time.Hour)}).Error)

	require.NoError(t, s.MarkHostsUpAndSeen([]uuid.UUID{host.ID}, now))

	reloaded, err := s.GetHost(host.ID)
	require.NoError(t, err)
	assert.Equal(t, HostStatusUp, reloaded.Status, "a host seen alive in the ping sweep must be marked up even with no open ports")
	assert.True(t, !reloaded.LastSeen.Before(now))
}

func TestMarkHostsDownGraceful_RespectsTwoHourGrace(t *testing.T) {
	s := newTestStore(t)
	host, err := s.UpsertHost("10.0.0.9", Host{})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", host.ID).
		Updates(map[string]interface{}{"status": HostStatusUp, "last_seen": now.Add(-30 * time.Minute)}).Error)

	require.NoError(t, s.MarkHostsDownGraceful(nil, now))
	reloaded, err := s.GetHost(host.ID)
	require.NoError(t, err)
	assert.Equal(t, HostStatusUp, reloaded.Status, "a host seen 30 minutes ago must not flap to down")

	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", host.ID).
		Update("last_seen", now.Add(-3*time.Hour)).Error)
	require.NoError(t, s.MarkHostsDownGraceful(nil, now))
	reloaded, err = s.GetHost(host.ID)
	require.NoError(t, err)
	assert.Equal(t, HostStatusDown, reloaded.Status, "a host absent for 3 hours must transition to down")
}

func TestMarkServicesClosedGraceful_RespectsTwoHourGrace(t *testing.T) {
	s := newTestStore(t)
	host, err := s.UpsertHost("10.0.0.10", Host{})
	require.NoError(t, err)
	svc, err := s.UpsertService(host.ID, Service{Port: 22})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.db.Model(&Service{}).Where("id = ?", svc.ID).
		Update("last_seen", now.Add(-30*time.Minute)).Error)
	require.NoError(t, s.MarkServicesClosedGraceful(host.ID, nil, now))

	var reloaded Service
	require.NoError(t, s.db.First(&reloaded, "id = ?", svc.ID).Error)
	assert.Equal(t, ServiceStateOpen, reloaded.State)

	require.NoError(t, s.db.Model(&Service{}).Where("id = ?", svc.ID).
		Update("last_seen", now.Add(-3*time.Hour)).Error)
	require.NoError(t, s.MarkServicesClosedGraceful(host.ID, nil, now))
	require.NoError(t, s.db.First(&reloaded, "id = ?", svc.ID).Error)
	assert.Equal(t, ServiceStateClosed, reloaded.State)
}

func TestWriteAvailabilitySamples_OneSamplePerHostSharedTimestamp(t *testing.T) {
	s := newTestStore(t)
	hostA, err := s.UpsertHost("10.0.0.11", Host{})
	require.NoError(t, err)
	hostB, err := s.UpsertHost("10.0.0.12", Host{})
	require.NoError(t, err)

	checkedAt := time.Now()
	alive := map[uuid.UUID]bool{hostA.ID: true}
	require.NoError(t, s.WriteAvailabilitySamples(alive, checkedAt))

	var samples []AvailabilitySample
	require.NoError(t, s.db.Find(&samples).Error)
	require.Len(t, samples, 2)
	for _, sample := range samples {
		assert.True(t, sample.CheckedAt.Equal(checkedAt))
		if sample.HostID == hostA.ID {
			assert.Equal(t, AvailabilityUp, sample.Status)
		} else {
			assert.Equal(t, AvailabilityDown, sample.Status)
		}
	}
}

func TestWriteAvailabilitySamples_GarbageCollectsOldRows(t *testing.T) {
	s := newTestStore(t)
	host, err := s.UpsertHost("10.0.0.13", Host{})
	require.NoError(t, err)

	old := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, s.db.Create(&AvailabilitySample{HostID: host.ID, CheckedAt: old, Status: AvailabilityUp}).Error)

	require.NoError(t, s.WriteAvailabilitySamples(map[uuid.UUID]bool{host.ID: true}, time.Now()))

	var count int64
	require.NoError(t, s.db.Model(&AvailabilitySample{}).Where("checked_at = ?", old).Count(&count).Error)
	assert.Zero(t, count, "samples older than the 30-day retention window must be deleted")
}

func TestDeleteHost_CascadesAndNullsChildren(t *testing.T) {
	s := newTestStore(t)
	parent, err := s.UpsertHost("10.0.0.1", Host{})
	require.NoError(t, err)
	child, err := s.UpsertHost("10.0.0.2", Host{})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", child.ID).Update("parent_host_id", parent.ID).Error)
	_, err = s.UpsertService(parent.ID, Service{Port: 80})
	require.NoError(t, err)
	require.NoError(t, s.WriteAvailabilitySamples(map[uuid.UUID]bool{parent.ID: true}, time.Now()))

	require.NoError(t, s.DeleteHost(parent.ID))

	gone, err := s.GetHost(parent.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	reloadedChild, err := s.GetHost(child.ID)
	require.NoError(t, err)
	assert.Nil(t, reloadedChild.ParentHostID)

	services, err := s.ListServices(parent.ID)
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestApplyHintAssignments_ManualOverrideIsSticky(t *testing.T) {
	s := newTestStore(t)
	parentA, err := s.UpsertHost("10.0.0.20", Host{})
	require.NoError(t, err)
	parentB, err := s.UpsertHost("10.0.0.21", Host{})
	require.NoError(t, err)
	child, err := s.UpsertHost("10.0.0.22", Host{})
	require.NoError(t, err)

	require.NoError(t, s.SetDeviceType(child.ID, "server"))
	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", child.ID).Update("parent_host_id", parentA.ID).Error)

	require.NoError(t, s.ApplyHintAssignments(map[uuid.UUID]uuid.UUID{child.ID: parentB.ID}))

	reloaded, err := s.GetHost(child.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ParentHostID)
	assert.Equal(t, parentA.ID, *reloaded.ParentHostID, "a manually-typed host's parent must survive applyHints")
}

func TestApplyHintAssignments_ClearsStaleAutoParentsBeforeReassigning(t *testing.T) {
	s := newTestStore(t)
	oldParent, err := s.UpsertHost("10.0.0.30", Host{})
	require.NoError(t, err)
	newParent, err := s.UpsertHost("10.0.0.31", Host{})
	require.NoError(t, err)
	child, err := s.UpsertHost("10.0.0.32", Host{})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", child.ID).Update("parent_host_id", oldParent.ID).Error)

	orphan, err := s.UpsertHost("10.0.0.33", Host{})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&Host{}).Where("id = ?", orphan.ID).Update("parent_host_id", oldParent.ID).Error)

	require.NoError(t, s.ApplyHintAssignments(map[uuid.UUID]uuid.UUID{child.ID: newParent.ID}))

	reloadedChild, err := s.GetHost(child.ID)
	require.NoError(t, err)
	require.NotNil(t, reloadedChild.ParentHostID)
	assert.Equal(t, newParent.ID, *reloadedChild.ParentHostID)

	reloadedOrphan, err := s.GetHost(orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, reloadedOrphan.ParentHostID, "auto-discovered parents absent from this round's assignments must be cleared")
}

func TestWriteSettings_InvalidBatchLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteSettings(map[string]string{"scan_interval": "60"}))

	err := s.WriteSettings(map[string]string{"scan_interval": "120", "scan_enabled": "maybe"})
	assert.Error(t, err)

	assert.Equal(t, "60", s.GetSetting("scan_interval", ""), "a rejected batch must not mutate any existing setting")
}

func TestWriteSettings_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteSettings(map[string]string{"scan_network": "192.168.1.0/24"}))
	assert.Equal(t, "192.168.1.0/24", s.GetSetting("scan_network", ""))
}

func TestRecoverStaleScans_ForcesRunningToError(t *testing.T) {
	s := newTestStore(t)
	scan, err := s.CreateScan("192.168.1.0/24")
	require.NoError(t, err)

	require.NoError(t, s.RecoverStaleScans())

	var reloaded Scan
	require.NoError(t, s.db.First(&reloaded, "id = ?", scan.ID).Error)
	assert.Equal(t, ScanStatusError, reloaded.Status)
	assert.Equal(t, "server restarted", reloaded.Error)
	require.NotNil(t, reloaded.FinishedAt)
}
