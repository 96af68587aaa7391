package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 24*time.Hour, cfg.Session.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Session.GateTimeout)
	assert.Equal(t, 3*time.Second, cfg.Session.Wait)
	assert.Equal(t, 8, cfg.Session.StreamWorkers)
	assert.Equal(t, 10, cfg.Session.LoginRateCapacity)
	assert.Equal(t, time.Minute, cfg.Session.LoginRateWindow)
	assert.False(t, cfg.Members.EnforceRoles)
	assert.EqualValues(t, 10<<20, cfg.Members.MaxImportBytes)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "acim_members", cfg.Mongo.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":          "s3cret",
		"ENV":                 "production",
		"ENFORCE_ROLES":       "true",
		"GATE_LOOKUP_TIMEOUT": "2s",
		"REDIS_DB":            "3",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Members.EnforceRoles)
	assert.Equal(t, 2*time.Second, cfg.Session.GateTimeout)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	assert.Error(t, err, "JWT_SECRET is required")

	_, err = LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
		"TOKEN_TTL":  "0s",
	}))
	assert.Error(t, err)
}
