package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.GRPC.Enabled)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, 1, cfg.Worker.Count)
	assert.Equal(t, "bundled", cfg.Shelters.Source)
	assert.Equal(t, SourceBundled, cfg.Shelters.Kind())
	assert.Zero(t, cfg.Shelters.RefreshInterval)
	assert.False(t, cfg.Shelters.Watch)
	assert.Equal(t, 15*time.Second, cfg.Shelters.HTTPTimeout)
	assert.True(t, cfg.DB.Enabled)
	assert.Equal(t, "./data/shelters.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GRPC_ENABLED", "false")
	t.Setenv("SHELTER_SOURCE", "/srv/data/shelters.csv")
	t.Setenv("SHELTER_REFRESH_INTERVAL", "10m")
	t.Setenv("SHELTER_WATCH", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("WORKER_COUNT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.GRPC.Enabled)
	assert.Equal(t, SourceFile, cfg.Shelters.Kind())
	path, ok := cfg.Shelters.FilePath()
	assert.True(t, ok)
	assert.Equal(t, "/srv/data/shelters.csv", path)
	assert.Equal(t, 10*time.Minute, cfg.Shelters.RefreshInterval)
	assert.True(t, cfg.Shelters.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Worker.Count)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"port", map[string]string{"SERVER_PORT": "70000"}, "server port"},
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "log level"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "log format"},
		{"short refresh", map[string]string{"SHELTER_REFRESH_INTERVAL": "30s"}, "refresh interval"},
		{"bad format", map[string]string{"SHELTER_FORMAT": "xml"}, "unknown shelter format"},
		{"file without extension", map[string]string{"SHELTER_SOURCE": "./shelters"}, "cannot infer format"},
		{"bad bbox", map[string]string{"SHELTER_SOURCE": "overpass", "OVERPASS_BBOX": "1,2"}, "OVERPASS_BBOX"},
		{"sqlite without db", map[string]string{"SHELTER_SOURCE": "sqlite", "DB_ENABLED": "false"}, "DB_ENABLED"},
		{"watch non-file", map[string]string{"SHELTER_WATCH": "true"}, "SHELTER_WATCH"},
		{"workers", map[string]string{"WORKER_COUNT": "0"}, "worker count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestShelterConfig_Kind(t *testing.T) {
	assert.Equal(t, SourceBundled, ShelterConfig{}.Kind())
	assert.Equal(t, SourceSQLite, ShelterConfig{Source: "sqlite"}.Kind())
	assert.Equal(t, SourceOverpass, ShelterConfig{Source: "overpass"}.Kind())
	assert.Equal(t, SourceHTTP, ShelterConfig{Source: "https://example.com/shelters.json"}.Kind())
	assert.Equal(t, SourceFile, ShelterConfig{Source: "shelters.yaml"}.Kind())

	_, ok := ShelterConfig{Source: "https://example.com/a.json"}.FilePath()
	assert.False(t, ok)
}
