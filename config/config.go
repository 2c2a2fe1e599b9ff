// Package config loads the engine's layered configuration: in-code defaults
// overridden by an INI file, mirroring the my.cnf-style sectioned config the
// rest of the ecosystem uses.
package config

import (
	"time"

	"gopkg.in/ini.v1"
)

// EngineConfig governs a storage engine instance: where its files live, how
// big its buffer pool is, and how its LRU-K partitions are sized.
type EngineConfig struct {
	Raw *ini.File

	DataDir string `default:"data"`

	BufferPoolPages int `default:"1024"`

	InitialFileSize int64 `default:"16777216"` // 16MiB
	AutoExtendSize  int64 `default:"16777216"` // 16MiB

	HotPercent  int `default:"50"`
	ColdPercent int `default:"30"`
	FreePercent int `default:"20"`

	// OldBlocksTime is named after InnoDB's innodb_old_blocks_time and is
	// loaded from [buffer_pool] old_blocks_time. Nothing in the engine reads
	// it: the LRU-K manager promotes a cold slot on its second access no
	// matter how long it has sat in cold.
	OldBlocksTime time.Duration `default:"1s"`

	LogLevel string `default:"info"`
	LogPath  string `default:""`
}

// Default returns an EngineConfig populated with the struct-tag defaults
// above, with no INI file applied.
func Default() *EngineConfig {
	return &EngineConfig{
		Raw:             ini.Empty(),
		DataDir:         "data",
		BufferPoolPages: 1024,
		InitialFileSize: 16 << 20,
		AutoExtendSize:  16 << 20,
		HotPercent:      50,
		ColdPercent:     30,
		FreePercent:     20,
		OldBlocksTime:   time.Second,
		LogLevel:        "info",
	}
}

// Load reads an INI file at path, overlaying it onto the defaults. Sections
// recognized: [engine], [buffer_pool], [logs].
func Load(path string) (*EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Raw = raw

	engine := raw.Section("engine")
	cfg.DataDir = engine.Key("data_dir").MustString(cfg.DataDir)
	cfg.InitialFileSize = engine.Key("initial_file_size").MustInt64(cfg.InitialFileSize)
	cfg.AutoExtendSize = engine.Key("auto_extend_size").MustInt64(cfg.AutoExtendSize)

	bp := raw.Section("buffer_pool")
	cfg.BufferPoolPages = bp.Key("pages").MustInt(cfg.BufferPoolPages)
	cfg.HotPercent = bp.Key("hot_percent").MustInt(cfg.HotPercent)
	cfg.ColdPercent = bp.Key("cold_percent").MustInt(cfg.ColdPercent)
	cfg.FreePercent = bp.Key("free_percent").MustInt(cfg.FreePercent)
	oldBlocks := bp.Key("old_blocks_time").MustString(cfg.OldBlocksTime.String())
	if d, err := time.ParseDuration(oldBlocks); err == nil {
		cfg.OldBlocksTime = d
	}

	logs := raw.Section("logs")
	cfg.LogLevel = logs.Key("level").MustString(cfg.LogLevel)
	cfg.LogPath = logs.Key("path").MustString(cfg.LogPath)

	return cfg, nil
}

// Validate rejects a configuration whose partition percentages don't sum
// sensibly or whose sizes are non-positive.
func (c *EngineConfig) Validate() error {
	if c.HotPercent+c.ColdPercent+c.FreePercent != 100 {
		return ErrInvalidPartitions
	}
	if c.BufferPoolPages <= 0 {
		return ErrInvalidBufferPoolSize
	}
	if c.InitialFileSize <= 0 || c.AutoExtendSize <= 0 {
		return ErrInvalidFileSize
	}
	return nil
}
