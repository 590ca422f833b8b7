package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv(JWTSecret, "test-secret")
	t.Setenv(StoreDriver, "Postgres")
	t.Setenv(SweepInterval, "250ms")
	t.Setenv(SeedDemoData, "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, StorePostgres, cfg.Auction.StoreDriver)
	require.Equal(t, 250*time.Millisecond, cfg.Auction.SweepInterval)
	require.True(t, cfg.Auction.SeedDemoData)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWTTTL)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.False(t, cfg.Redis.Enabled)
	require.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080"},
		Auction: AuctionConfig{StoreDriver: StoreMemory, SweepInterval: time.Second},
		Auth:    AuthConfig{JWTSecret: "s", JWTTTL: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid memory config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"unknown driver", func(c *Config) { c.Auction.StoreDriver = "mongo" }, true},
		{"postgres without url", func(c *Config) { c.Auction.StoreDriver = StorePostgres }, true},
		{"postgres with url", func(c *Config) {
			c.Auction.StoreDriver = StorePostgres
			c.Database.URL = "postgres://localhost/db"
		}, false},
		{"redis enabled without addr", func(c *Config) { c.Redis.Enabled = true }, true},
		{"zero sweep interval", func(c *Config) { c.Auction.SweepInterval = 0 }, true},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
