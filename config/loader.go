// Package config provides a minimal TOML-backed settings loader for the
// sample host application — not the original project's full fluent
// builder facade (out of scope), only the handful of knobs the demo binary
// needs to construct an openkit.Configuration.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// File is the on-disk shape of the sample's config file.
type File struct {
	Endpoint                 string `toml:"endpoint"`
	ApplicationID            string `toml:"application_id"`
	ApplicationVersion       string `toml:"application_version"`
	LogLevel                 string `toml:"log_level"`
	CacheMaxRecordAgeSeconds int64  `toml:"cache_max_record_age_seconds"`
	CacheLowerBoundBytes     int64  `toml:"cache_lower_bound_bytes"`
	CacheUpperBoundBytes     int64  `toml:"cache_upper_bound_bytes"`
}

// MaxRecordAge converts CacheMaxRecordAgeSeconds to a time.Duration,
// defaulting to 2 hours when unset.
func (f File) MaxRecordAge() time.Duration {
	if f.CacheMaxRecordAgeSeconds <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(f.CacheMaxRecordAgeSeconds) * time.Second
}

// Load reads and parses a TOML config file from path.
func Load(path string) (File, error) {
	var f File
	_, err := toml.DecodeFile(path, &f)
	return f, err
}
