package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
service:
  name: stratmgr
  env: test
  metrics_addr: ":9090"
  pyroscope:
    enabled: false
store:
  backend: memory
lock:
  type: memory
journal:
  dir: /var/lib/stratmgr/journal
  segment_max_seconds: 3600
  flush_interval_ms: 100
queue_size: 2048
recover: true
securities:
  - sec_id: CB_Sec_1
    security_float: 100000
    usd_fx_rate: 1
  - sec_id: EQT_Sec_1
    security_float: 200000
    usd_fx_rate: 0.8
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	loaded, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "stratmgr", loaded.File.Service.Name)
	assert.Equal(t, ":9090", loaded.File.Service.MetricsAddr)
	assert.Equal(t, "memory", loaded.File.Store.Backend)
	assert.Equal(t, "/var/lib/stratmgr/journal", loaded.Journal.Dir)
	assert.Equal(t, time.Hour, loaded.Journal.SegmentMaxDuration)
	assert.Equal(t, 100*time.Millisecond, loaded.Journal.FlushInterval)
	assert.Equal(t, 2048, loaded.File.QueueSize)
	assert.True(t, loaded.File.Recover)

	require.Equal(t, 2, loaded.Registry.SecurityCount())
	def, ok := loaded.Registry.Security("EQT_Sec_1")
	require.True(t, ok)
	assert.Equal(t, int64(200000), def.SecurityFloat)
	assert.Equal(t, 0.8, def.UsdFxRate)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STRATMGR_PG_PASSWORD", "hunter2")
	t.Setenv("STRATMGR_PG_PORT", "5433")
	t.Setenv("STRATMGR_JOURNAL_DIR", "/tmp/journal-override")

	loaded, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", loaded.File.Store.Postgres.Password)
	assert.Equal(t, 5433, loaded.File.Store.Postgres.Port)
	assert.Equal(t, "/tmp/journal-override", loaded.Journal.Dir)
}

func TestLoadDuplicateSecurity(t *testing.T) {
	_, err := Load(writeConfig(t, `
securities:
  - sec_id: CB_Sec_1
  - sec_id: CB_Sec_1
`))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "securities: ["))
	assert.Error(t, err)
}

func TestWatchReload(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	done := make(chan struct{})
	reloaded := make(chan Loaded, 1)
	go Watch(done, path, 10*time.Millisecond, func(l Loaded) {
		select {
		case reloaded <- l:
		default:
		}
	})
	defer close(done)

	// The first tick after start picks up the existing file.
	select {
	case l := <-reloaded:
		assert.Equal(t, "stratmgr", l.File.Service.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("config watch did not fire")
	}
}
