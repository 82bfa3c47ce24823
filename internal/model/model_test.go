package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAppConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
store:
  path: /srv/archive.db
archive:
  attachment_folder: /srv/attachments
tasks:
  workers: 0
cache:
  backend: bolt
  recent_days: -3
directory:
  enabled: true
  base_url: http://localhost:8001/3.1
  username: restadmin
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	defaults := DefaultAppConfig()
	assert.Equal(t, "/srv/archive.db", cfg.Store.Path)
	assert.Equal(t, "/srv/attachments", cfg.Archive.AttachmentFolder)
	assert.Equal(t, 1, cfg.Tasks.Workers)
	assert.Equal(t, defaults.Tasks.LockTTLSec, cfg.Tasks.LockTTLSec)
	assert.Equal(t, "bolt", cfg.Cache.Backend)
	assert.Equal(t, defaults.Cache.RecentDays, cfg.Cache.RecentDays)
	assert.True(t, cfg.Directory.Enabled)
	assert.Equal(t, "restadmin", cfg.Directory.Username)
	assert.Equal(t, defaults.Directory.PasswordKey, cfg.Directory.PasswordKey)
	assert.Equal(t, defaults.Index.BatchSize, cfg.Index.BatchSize)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Cache.Backend = "bolt"
	cfg.Serve.MetricsListen = "127.0.0.1:9180"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", loaded.Cache.Backend)
	assert.Equal(t, "127.0.0.1:9180", loaded.Serve.MetricsListen)
}

func TestParseArchivePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want ArchivePolicy
	}{
		{"never", ArchivePolicyNever},
		{"Private", ArchivePolicyPrivate},
		{" public ", ArchivePolicyPublic},
		{"", ArchivePolicyPublic},
	}
	for _, tt := range tests {
		got, err := ParseArchivePolicy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseArchivePolicy("secret")
	assert.Error(t, err)
	assert.Equal(t, "ArchivePolicy(7)", ArchivePolicy(7).String())
}

func TestNewVoteSummary(t *testing.T) {
	assert.Equal(t, VoteStatusNeutral, NewVoteSummary(0, 0).Status)
	assert.Equal(t, VoteStatusNeutral, NewVoteSummary(2, 3).Status)
	assert.Equal(t, VoteStatusLike, NewVoteSummary(3, 2).Status)
	assert.Equal(t, VoteStatusLikeALot, NewVoteSummary(12, 2).Status)
}
