package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint = "https://example.com/mbeacon"
application_id = "app-123"
application_version = "2.0"
log_level = "debug"
cache_max_record_age_seconds = 7200
cache_lower_bound_bytes = 1024
cache_upper_bound_bytes = 2048
`), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/mbeacon", f.Endpoint)
	require.Equal(t, "app-123", f.ApplicationID)
	require.Equal(t, 2*time.Hour, f.MaxRecordAge())
}

func TestMaxRecordAgeDefaultsWhenUnset(t *testing.T) {
	var f File
	require.Equal(t, 2*time.Hour, f.MaxRecordAge())
}
