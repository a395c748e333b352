package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-foundry/psml-go-sdk/session"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Validation.MaxDepth)
	assert.False(t, cfg.Validation.FailOnWarnings)
	assert.Equal(t, BackendFile, cfg.Session.Backend)
	assert.Equal(t, session.DefaultKey, cfg.Session.Key)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "zero max depth", modify: func(c *Config) { c.Validation.MaxDepth = 0 }, wantErr: true},
		{name: "unknown backend", modify: func(c *Config) { c.Session.Backend = "etcd" }, wantErr: true},
		{name: "missing key", modify: func(c *Config) { c.Session.Key = "" }, wantErr: true},
		{name: "redis without address", modify: func(c *Config) {
			c.Session.Backend = BackendRedis
			c.Session.RedisAddr = ""
		}, wantErr: true},
		{name: "negative redis db", modify: func(c *Config) { c.Session.RedisDB = -1 }, wantErr: true},
		{name: "unknown log mode", modify: func(c *Config) { c.Log.Mode = "loud" }, wantErr: true},
		{name: "memory backend", modify: func(c *Config) { c.Session.Backend = BackendMemory }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
validation:
  max_depth: 4
  fail_on_warnings: true
session:
  backend: redis
  redis_addr: "cache:6379"
  redis_db: 2
log:
  mode: prod
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Validation.MaxDepth)
	assert.True(t, cfg.Validation.FailOnWarnings)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "cache:6379", cfg.Session.RedisAddr)
	assert.Equal(t, 2, cfg.Session.RedisDB)
	assert.Equal(t, "prod", cfg.Log.Mode)
	assert.Empty(t, cfg.Session.Key, "unset fields stay zero so Merge leaves lower layers alone")

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("validation: [nope"), 0644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Session.Backend = BackendMemory
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(nil)
	cfg.Merge(&Config{
		Validation: ValidationConfig{MaxDepth: 6},
		Session:    SessionConfig{Dir: "/tmp/psml"},
	})
	assert.Equal(t, 6, cfg.Validation.MaxDepth)
	assert.Equal(t, "/tmp/psml", cfg.Session.Dir)
	assert.Equal(t, BackendFile, cfg.Session.Backend)
	assert.Equal(t, session.DefaultKey, cfg.Session.Key)
	assert.Equal(t, "quiet", cfg.Log.Mode)
}

func TestSessionDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Dir = "/var/lib/psml"
	dir, err := cfg.SessionDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/psml", dir)

	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg.Session.Dir = ""
	dir, err = cfg.SessionDir()
	require.NoError(t, err)
	assert.Equal(t, "psml", filepath.Base(dir))
}

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvRedisAddr, "")

	user := DefaultConfig()
	user.Validation.MaxDepth = 7
	user.Log.Mode = "dev"
	require.NoError(t, user.SaveToFile(filepath.Join(home, UserConfigDir, UserConfigFile)))

	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, ProjectConfigFile), []byte("validation:\n  max_depth: 5\n"), 0644))
	sub := filepath.Join(project, "prompts", "drafts")
	require.NoError(t, os.MkdirAll(sub, 0755))
	testChdir(t, sub)

	loader := NewLoader(nil)
	cfg, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Validation.MaxDepth, "project config overrides user config")
	assert.Equal(t, "dev", cfg.Log.Mode, "user config survives where the project is silent")

	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("session:\n  backend: redis\n"), 0644))
	t.Setenv(EnvRedisAddr, "env-host:6380")
	cfg, err = loader.Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "env-host:6380", cfg.Session.RedisAddr)

	_, err = loader.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoaderRejectsInvalidResult(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	testChdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigFile), []byte("session:\n  backend: etcd\n"), 0644))

	_, err := NewLoader(nil).Load("")
	assert.Error(t, err)
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	loader := NewLoader(nil)
	require.NoError(t, loader.EnsureUserConfig())

	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  mode: prod\n"), 0644))
	require.NoError(t, loader.EnsureUserConfig())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "log:\n  mode: prod\n", string(data), "existing file left untouched")
}
