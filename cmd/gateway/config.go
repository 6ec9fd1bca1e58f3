package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"botgateway/domain"
)

// Env variable names (SPEC_FULL.md §7 "Environment variables"). All override the documented
// defaults (domain.DefaultConfig); none have an equivalent YAML file in this design — the teacher's
// CONFIG_PATH/YAML layer described routes and clusters this gateway does not have.
const (
	envServerAddress    = "GRPC_SERVER_ADDRESS"
	envLogLevel         = "GRPC_LOG_LEVEL"
	envSecurityTokens   = "GRPC_SECURITY_TOKENS"
	envHeartbeatTimeout = "GRPC_ROUTER_HEARTBEAT_TIMEOUT"
	envRequestTimeout   = "GRPC_ROUTER_REQUEST_TIMEOUT"
	envPoolMaxConns     = "GRPC_POOL_MAX_CONNECTIONS"
)

// LoadConfig builds domain.Config from environment variables, starting from domain.DefaultConfig
// and overriding whatever is set. GRPC_SERVER_ADDRESS and GRPC_SECURITY_TOKENS are required; every
// other variable is optional and falls back to the default. Grounded on the teacher's
// cmd.LoadConfig (os.Getenv + strconv, fmt.Errorf on invalid values) with the YAML layer dropped
// since this gateway has no route/cluster file to load.
func LoadConfig() (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	cfg.ServerAddress = strings.TrimSpace(os.Getenv(envServerAddress))
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("%s is required", envServerAddress)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv(envLogLevel)))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	tokensRaw := strings.TrimSpace(os.Getenv(envSecurityTokens))
	if tokensRaw == "" {
		return nil, fmt.Errorf("%s is required", envSecurityTokens)
	}
	var tokens []string
	for _, t := range strings.Split(tokensRaw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%s must contain at least one non-empty token", envSecurityTokens)
	}
	cfg.SecurityTokens = tokens

	if err := overrideDuration(&cfg.HeartbeatTimeout, envHeartbeatTimeout); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.RequestTimeout, envRequestTimeout); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(os.Getenv(envPoolMaxConns)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer, got %q", envPoolMaxConns, raw)
		}
		cfg.PoolMaxConnections = n
	}

	if cfg.PoolConnectionTTL <= 0 {
		cfg.PoolConnectionTTL = 10 * time.Minute
	}
	if cfg.PoolIdleTimeout <= 0 {
		cfg.PoolIdleTimeout = 2 * time.Minute
	}
	if cfg.PoolCleanupInterval <= 0 {
		cfg.PoolCleanupInterval = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}

	return &cfg, nil
}

// overrideDuration parses env as a Go duration string (e.g. "120s") and assigns it to *d if
// present; a missing or blank env var leaves *d untouched.
func overrideDuration(d *time.Duration, env string) error {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fmt.Errorf("%s must be a positive duration (e.g. \"120s\"), got %q", env, raw)
	}
	*d = parsed
	return nil
}
