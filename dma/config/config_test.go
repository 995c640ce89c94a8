package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/nicdma/dma/caps"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/dma/pool"
	"github.com/joshuapare/nicdma/dma/ring"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, pool.DefaultConfig(), cfg.Pool)
	assert.Equal(t, ring.DefaultConfig(), cfg.Ring)
	assert.Equal(t, ProviderSim, cfg.Memory.Provider)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "dma.yaml", `
device: 3C515-TX
pool:
  sizes: [8192, 4096]
  coalesce: true
memory:
  locker: none
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "3C515-TX", cfg.Device)
	assert.Equal(t, []uint64{8192, 4096}, cfg.Pool.Sizes)
	assert.True(t, cfg.Pool.Coalesce)
	assert.Equal(t, uint64(0x10000), cfg.Pool.Boundary, "unset fields keep defaults")
	assert.Equal(t, 32, cfg.Ring.LargeCount)
	assert.Nil(t, cfg.NewLocker())
}

func TestLoad_JSONFromEnv(t *testing.T) {
	path := writeFile(t, "dma.json", `{"ring": {"large_count": 8, "large_size": 1600, "small_count": 4, "small_size": 256,
		"boundary": 65536, "alignment": 16, "retry_unit": 4096, "max_retries": 4, "max_devices": 2}}`)
	t.Setenv(EnvConfigFile, path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Ring.LargeCount)
	assert.Equal(t, 2, cfg.Ring.MaxDevices)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "bad.json", "{"))
	require.ErrorContains(t, err, "JSON")

	_, err = Load(writeFile(t, "bad.yml", "pool: [unclosed"))
	require.ErrorContains(t, err, "YAML")

	_, err = Load(writeFile(t, "dev.yaml", "device: NE2000\n"))
	require.ErrorIs(t, err, caps.ErrNotFound)

	_, err = Load(writeFile(t, "prov.yaml", "memory: {provider: xms}\n"))
	require.ErrorContains(t, err, "provider")

	_, err = Load(writeFile(t, "lock.yaml", "memory: {locker: vds}\n"))
	require.ErrorContains(t, err, "locker")

	_, err = Load(writeFile(t, "ring.yaml", "ring: {large_count: 0}\n"))
	require.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("a.YML"))
	assert.Equal(t, FormatYAML, DetectFormat("a.yaml"))
	assert.Equal(t, FormatJSON, DetectFormat("a.json"))
	assert.Equal(t, FormatJSON, DetectFormat("noext"))
}

func TestMarshal_RoundTripsThroughLoad(t *testing.T) {
	cfg := Default()
	cfg.Device = "3C905C"
	for _, f := range []struct {
		name string
		fmt  Format
	}{{"c.yaml", FormatYAML}, {"c.json", FormatJSON}} {
		data, err := Marshal(cfg, f.fmt)
		require.NoError(t, err)
		loaded, err := Load(writeFile(t, f.name, string(data)))
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded)
	}
}

func TestRingConfig_UsesDeviceCapabilities(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Ring, cfg.RingConfig())

	cfg.Device = "3C515-TX"
	rc := cfg.RingConfig()
	assert.Equal(t, uint64(0x1000000), rc.AddressLimit)
	assert.Equal(t, uint64(0x10000), rc.Boundary)

	cfg.Device = "3C905"
	assert.Zero(t, cfg.RingConfig().Boundary)
}

func TestNewProviderAndLocker(t *testing.T) {
	cfg := Default()
	cfg.Memory.PhysOffset = 0x1000
	p, ok := cfg.NewProvider().(*mem.SimProvider)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), p.PhysOffset)
	_, ok = cfg.NewLocker().(*mem.SimLocker)
	assert.True(t, ok)

	cfg.Memory.Provider = ProviderMmap
	cfg.Memory.Locker = LockerMlock
	_, ok = cfg.NewProvider().(*mem.MmapProvider)
	assert.True(t, ok)
	_, ok = cfg.NewLocker().(*mem.MlockLocker)
	assert.True(t, ok)
}
