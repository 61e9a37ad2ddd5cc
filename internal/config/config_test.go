package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.1, cfg.Conversion.LinearDeflection)
	assert.Equal(t, 0.5, cfg.Conversion.AngularDeflection)
	assert.Equal(t, 50, cfg.Conversion.MaxFileSizeMB)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxFileSizeBytes())
}

func TestValidate_LinearDeflectionBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		linear float64
		ok     bool
	}{
		{"lower boundary accepted", 0.001, true},
		{"upper boundary accepted", 1.0, true},
		{"below lower rejected", 0.0009, false},
		{"above upper rejected", 1.1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Conversion.LinearDeflection = tc.linear

			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "linear_deflection")
			}
		})
	}
}

func TestValidate_AngularDeflectionBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		angular float64
		ok      bool
	}{
		{"lower boundary accepted", 0.1, true},
		{"upper boundary accepted", 1.0, true},
		{"below lower rejected", 0.09, false},
		{"above upper rejected", 1.1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Conversion.AngularDeflection = tc.angular

			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "angular_deflection")
			}
		})
	}
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty cors origins", func(c *Config) { c.Server.CORSOrigins = nil }},
		{"zero rate limit", func(c *Config) { c.Server.RateLimitPerMinute = 0 }},
		{"zero max file size", func(c *Config) { c.Conversion.MaxFileSizeMB = 0 }},
		{"unknown kernel backend", func(c *Config) { c.Kernel.Backend = "parasolid" }},
		{"unknown database driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"unknown artifact backend", func(c *Config) { c.Artifact.Backend = "ftp" }},
		{"s3 backend without bucket", func(c *Config) { c.Artifact.Backend = "s3"; c.Artifact.S3.Bucket = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "occt", cfg.Kernel.Backend)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9090
conversion:
  max_file_size_mb: 10
  linear_deflection: 0.05
kernel:
  backend: stub
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Conversion.MaxFileSizeMB)
	assert.Equal(t, 0.05, cfg.Conversion.LinearDeflection)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.5, cfg.Conversion.AngularDeflection)
	assert.Equal(t, "stub", cfg.Kernel.Backend)
}

func TestLoad_InvalidToleranceFailsStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
conversion:
  linear_deflection: 0.0009
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linear_deflection")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("MAX_FILE_SIZE_MB", "5")
	t.Setenv("LINEAR_DEFLECTION", "0.2")
	t.Setenv("ANGULAR_DEFLECTION", "0.9")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KERNEL_BACKEND", "stub")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Conversion.MaxFileSizeMB)
	assert.Equal(t, 0.2, cfg.Conversion.LinearDeflection)
	assert.Equal(t, 0.9, cfg.Conversion.AngularDeflection)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "stub", cfg.Kernel.Backend)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestEnvOverrides_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cad:cad@db:5432/cad_engine?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://cad:cad@db:5432/cad_engine?sslmode=disable", cfg.DatabaseDSN())
}
