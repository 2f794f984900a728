package telemetry

import (
	"testing"
	"time"

	"surplus2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFreshness(t *testing.T) {

	require := require.New(t)

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewCache(true)
	c.now = func() time.Time { return now }

	// empty cache: nothing available
	_, ok := c.OperatingMode()
	require.False(ok)
	require.EqualValues(-1, c.SolarPowerWatts())

	c.SetChargerStatus(domain.ChargerStatus{
		Mode:                domain.ChargerModeBulk,
		BatteryVoltageMV:    13820,
		AbsorptionVoltageMV: 14400,
		FloatVoltageMV:      13800,
		SolarPowerWatts:     1174,
		UpdatedAt:           now,
	})

	mode, ok := c.OperatingMode()
	require.True(ok)
	require.Equal(domain.ChargerModeBulk, mode)
	require.EqualValues(1174, c.SolarPowerWatts())

	v, ok := c.BatteryVoltage()
	require.True(ok)
	require.EqualValues(13820, v)

	// stale snapshot: everything unavailable again
	now = now.Add(61 * time.Second)
	_, ok = c.OperatingMode()
	require.False(ok)
	require.EqualValues(-1, c.SolarPowerWatts())
}

func TestCacheZeroVoltagesUnavailable(t *testing.T) {

	require := require.New(t)

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewCache(true)
	c.now = func() time.Time { return now }

	c.SetChargerStatus(domain.ChargerStatus{
		Mode:      domain.ChargerModeAbsorption,
		UpdatedAt: now,
	})

	_, ok := c.AbsorptionVoltage()
	require.False(ok)
	_, ok = c.FloatVoltage()
	require.False(ok)
	_, ok = c.BatteryVoltage()
	require.False(ok)
}

func TestCacheBatteryStats(t *testing.T) {

	c := NewCache(false)
	assert.False(t, c.Enabled())

	c = NewCache(true)
	assert.True(t, c.Enabled())

	stats := domain.BatteryStats{
		SoC:               84.3,
		SoCValid:          true,
		ChargeCurrentAmps: -2.1,
		CurrentValid:      true,
	}
	c.SetBatteryStats(stats)
	assert.Equal(t, stats, c.Stats())
}

func TestCacheInvalidate(t *testing.T) {

	require := require.New(t)

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewCache(true)
	c.now = func() time.Time { return now }

	c.SetChargerStatus(domain.ChargerStatus{
		Mode:      domain.ChargerModeFloat,
		UpdatedAt: now,
	})
	_, ok := c.OperatingMode()
	require.True(ok)

	c.Invalidate()
	_, ok = c.OperatingMode()
	require.False(ok)
}
