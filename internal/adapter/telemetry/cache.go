package telemetry

import (
	"sync"
	"time"

	"surplus2mqtt/internal/core/domain"
	"surplus2mqtt/internal/core/port"
)

// snapshots older than this are treated as unavailable
const chargerMaxAge = 60 * time.Second

// Cache is the shared telemetry snapshot store. The charger poll actor
// writes, the regulation engine reads. It implements both the solar charger
// and the battery provider ports.
type Cache struct {
	mu sync.RWMutex

	charger    domain.ChargerStatus
	hasCharger bool

	battery        domain.BatteryStats
	batteryEnabled bool

	now func() time.Time
}

func NewCache(batteryEnabled bool) *Cache {
	return &Cache{
		batteryEnabled: batteryEnabled,
		now:            time.Now,
	}
}

// SetChargerStatus stores a fresh charger snapshot.
func (c *Cache) SetChargerStatus(status domain.ChargerStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charger = status
	c.hasCharger = true
}

// SetBatteryStats stores a fresh battery monitor snapshot.
func (c *Cache) SetBatteryStats(stats domain.BatteryStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.battery = stats
}

// Invalidate drops the charger snapshot, e.g. after repeated poll failures.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasCharger = false
}

func (c *Cache) chargerSnapshot() (domain.ChargerStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasCharger || c.now().Sub(c.charger.UpdatedAt) >= chargerMaxAge {
		return domain.ChargerStatus{}, false
	}
	return c.charger, true
}

func (c *Cache) OperatingMode() (domain.ChargerMode, bool) {
	snap, ok := c.chargerSnapshot()
	if !ok {
		return domain.ChargerModeOff, false
	}
	return snap.Mode, true
}

func (c *Cache) AbsorptionVoltage() (float64, bool) {
	snap, ok := c.chargerSnapshot()
	if !ok || snap.AbsorptionVoltageMV <= 0 {
		return 0, false
	}
	return snap.AbsorptionVoltageMV, true
}

func (c *Cache) FloatVoltage() (float64, bool) {
	snap, ok := c.chargerSnapshot()
	if !ok || snap.FloatVoltageMV <= 0 {
		return 0, false
	}
	return snap.FloatVoltageMV, true
}

func (c *Cache) BatteryVoltage() (float64, bool) {
	snap, ok := c.chargerSnapshot()
	if !ok || snap.BatteryVoltageMV <= 0 {
		return 0, false
	}
	return snap.BatteryVoltageMV, true
}

func (c *Cache) SolarPowerWatts() int {
	snap, ok := c.chargerSnapshot()
	if !ok {
		return -1
	}
	return snap.SolarPowerWatts
}

func (c *Cache) Enabled() bool {
	return c.batteryEnabled
}

func (c *Cache) Stats() domain.BatteryStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.battery
}

// ChargerStatus returns the raw snapshot regardless of freshness, for
// sensor publication.
func (c *Cache) ChargerStatus() (domain.ChargerStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.charger, c.hasCharger
}

// ensure interface compliance
var (
	_ port.SolarCharger    = (*Cache)(nil)
	_ port.BatteryProvider = (*Cache)(nil)
)
