// Package ops loads and watches the service configuration: YAML file,
// environment overrides for secrets, and a periodic mtime-based reload for
// the security master.
package ops

import (
	"os"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gopkg.in/yaml.v3"

	"stratmgr/internal/journal"
	"stratmgr/internal/lock"
	"stratmgr/internal/schema"
	"stratmgr/internal/store"
)

// PyroscopeConfig controls the continuous profiler.
type PyroscopeConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ServerAddress   string `yaml:"server_address"`
	ApplicationName string `yaml:"application_name"`
}

// ServiceConfig names the deployment.
type ServiceConfig struct {
	Name        string          `yaml:"name"`
	Env         string          `yaml:"env"`
	MetricsAddr string          `yaml:"metrics_addr"`
	Pyroscope   PyroscopeConfig `yaml:"pyroscope"`
}

// SecurityConfig is one security-master entry in the config file.
type SecurityConfig struct {
	SecID         string  `yaml:"sec_id"`
	SecurityFloat int64   `yaml:"security_float"`
	UsdFxRate     float64 `yaml:"usd_fx_rate"`
	LotSize       int64   `yaml:"lot_size"`
}

// JournalConfig is the YAML-facing journal section. Durations are plain
// integers with the unit in the key name; yaml.v3 has no native duration
// decoding.
type JournalConfig struct {
	Dir               string `yaml:"dir"`
	SegmentMaxBytes   int64  `yaml:"segment_max_bytes"`
	SegmentMaxSeconds int    `yaml:"segment_max_seconds"`
	QueueSize         int    `yaml:"queue_size"`
	BufferSize        int    `yaml:"buffer_size"`
	FilePrefix        string `yaml:"file_prefix"`
	FlushIntervalMs   int    `yaml:"flush_interval_ms"`
	SyncIntervalMs    int    `yaml:"sync_interval_ms"`
}

func (c JournalConfig) build() journal.Config {
	return journal.Config{
		Dir:                c.Dir,
		SegmentMaxBytes:    c.SegmentMaxBytes,
		SegmentMaxDuration: time.Duration(c.SegmentMaxSeconds) * time.Second,
		QueueSize:          c.QueueSize,
		BufferSize:         c.BufferSize,
		FilePrefix:         c.FilePrefix,
		FlushInterval:      time.Duration(c.FlushIntervalMs) * time.Millisecond,
		SyncInterval:       time.Duration(c.SyncIntervalMs) * time.Millisecond,
	}
}

// FileConfig mirrors the YAML config layout.
type FileConfig struct {
	Service    ServiceConfig    `yaml:"service"`
	Store      store.Config     `yaml:"store"`
	Lock       lock.Config      `yaml:"lock"`
	Journal    JournalConfig    `yaml:"journal"`
	QueueSize  int              `yaml:"queue_size"`
	Recover    bool             `yaml:"recover"`
	Securities []SecurityConfig `yaml:"securities"`
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	File     FileConfig
	Journal  journal.Config
	Registry *schema.Registry
}

// Load reads a YAML config file, applies environment overrides, and builds
// the security registry.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}
	applyEnvOverrides(&cfg)

	registry, err := buildRegistry(cfg.Securities)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{File: cfg, Journal: cfg.Journal.build(), Registry: registry}, nil
}

// applyEnvOverrides resolves secrets and per-host settings that must not
// live in the config file.
func applyEnvOverrides(cfg *FileConfig) {
	if v := os.Getenv("STRATMGR_PG_HOST"); v != "" {
		cfg.Store.Postgres.Host = v
	}
	if v := os.Getenv("STRATMGR_PG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.Port = port
		}
	}
	if v := os.Getenv("STRATMGR_PG_PASSWORD"); v != "" {
		cfg.Store.Postgres.Password = v
	}
	if v := os.Getenv("STRATMGR_REDIS_ADDR"); v != "" {
		cfg.Lock.Redis.Addr = v
	}
	if v := os.Getenv("STRATMGR_REDIS_PASSWORD"); v != "" {
		cfg.Lock.Redis.Password = v
	}
	if v := os.Getenv("STRATMGR_JOURNAL_DIR"); v != "" {
		cfg.Journal.Dir = v
	}
}

func buildRegistry(securities []SecurityConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, sec := range securities {
		err := reg.AddSecurity(schema.SecurityDef{
			SecID:         sec.SecID,
			SecurityFloat: sec.SecurityFloat,
			UsdFxRate:     sec.UsdFxRate,
			LotSize:       sec.LotSize,
		})
		if err != nil {
			return nil, errors.Wrap(err, "build security registry").With("sec", sec.SecID)
		}
	}
	return reg, nil
}

// Watch polls the config file and invokes update whenever the file's mtime
// advances and it still parses. Broken edits keep the previous config.
func Watch(done <-chan struct{}, path string, interval time.Duration, update func(Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("config stat failed: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("config reload failed: %+v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s", path)
		}
	}
}
