package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		envServerAddress, envLogLevel, envSecurityTokens,
		envHeartbeatTimeout, envRequestTimeout, envPoolMaxConns,
	} {
		t.Setenv(env, "")
	}
}

func TestLoadConfig_RequiresServerAddress(t *testing.T) {
	clearEnv(t)
	t.Setenv(envSecurityTokens, "T1")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), envServerAddress)
}

func TestLoadConfig_RequiresSecurityTokens(t *testing.T) {
	clearEnv(t)
	t.Setenv(envServerAddress, ":8080")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), envSecurityTokens)
}

func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envServerAddress, ":8080")
	t.Setenv(envSecurityTokens, "T1, T2 ,,T3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, []string{"T1", "T2", "T3"}, cfg.SecurityTokens)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 120.0, cfg.HeartbeatTimeout.Seconds())
	assert.Equal(t, 30.0, cfg.RequestTimeout.Seconds())
}

func TestLoadConfig_OverridesDurationsAndLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv(envServerAddress, ":9090")
	t.Setenv(envSecurityTokens, "T1")
	t.Setenv(envLogLevel, "DEBUG")
	t.Setenv(envHeartbeatTimeout, "45s")
	t.Setenv(envRequestTimeout, "10s")
	t.Setenv(envPoolMaxConns, "64")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45e9, float64(cfg.HeartbeatTimeout))
	assert.Equal(t, 10e9, float64(cfg.RequestTimeout))
	assert.Equal(t, 64, cfg.PoolMaxConnections)
}

func TestLoadConfig_RejectsInvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv(envServerAddress, ":8080")
	t.Setenv(envSecurityTokens, "T1")
	t.Setenv(envRequestTimeout, "not-a-duration")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), envRequestTimeout)
}

func TestLoadConfig_RejectsInvalidPoolMaxConns(t *testing.T) {
	clearEnv(t)
	t.Setenv(envServerAddress, ":8080")
	t.Setenv(envSecurityTokens, "T1")
	t.Setenv(envPoolMaxConns, "-1")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), envPoolMaxConns)
}
