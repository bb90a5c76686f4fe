package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SOCKET_REDIS_ADDR.
const EnvPrefix = "SOCKET"

// Load reads configuration from defaults, the optional YAML file at path,
// SOCKET_* environment variables and flags, in increasing precedence.
func Load(path string, flags *pflag.FlagSet) (*SocketConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The REST API reads its signing key from JWT_SECRET.
	_ = v.BindEnv("auth.secret", EnvPrefix+"_AUTH_SECRET", "JWT_SECRET")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	if flags != nil {
		for key, name := range map[string]string{"addr": "addr", "log_level": "log-level", "auth.mode": "auth-mode"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &SocketConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *SocketConfig) {
	v.SetDefault("addr", d.Addr)
	v.SetDefault("path", d.Path)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("max_connections", d.MaxConnections)
	v.SetDefault("ping_interval_seconds", d.PingInterval)
	v.SetDefault("pong_wait_seconds", d.PongWait)
	v.SetDefault("write_timeout_seconds", d.WriteTimeout)
	v.SetDefault("read_buffer_size", d.ReadBufferSize)
	v.SetDefault("write_buffer_size", d.WriteBufferSize)
	v.SetDefault("send_buffer", d.SendBuffer)
	v.SetDefault("allowed_origins", d.AllowedOrigins)

	v.SetDefault("auth.mode", d.Auth.Mode)
	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.cookie_name", d.Auth.CookieName)
	v.SetDefault("auth.token_query_param", d.Auth.TokenQueryParam)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)

	v.SetDefault("mongo.uri", d.Mongo.URI)
	v.SetDefault("mongo.database", d.Mongo.Database)
	v.SetDefault("mongo.collection", d.Mongo.Collection)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Validate checks the configuration for values the server cannot run with.
func (c *SocketConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must be set")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path %q must start with /", c.Path)
	}
	if c.MaxConnections < 1 {
		return errors.New("max connections must be positive")
	}
	if c.PingInterval < 1 {
		return errors.New("ping interval must be at least 1 second")
	}
	if c.PongWait <= c.PingInterval {
		return errors.New("pong wait must be longer than the ping interval")
	}
	if c.SendBuffer < 1 {
		return errors.New("send buffer must be positive")
	}

	switch c.Auth.Mode {
	case AuthOff:
	case AuthEnforce:
		if c.Auth.Secret == "" {
			return errors.New("auth.secret must be set when auth is enforced")
		}
		if c.Auth.CookieName == "" && c.Auth.TokenQueryParam == "" {
			return errors.New("auth needs a cookie name or a token query parameter")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s. Must be '%s' or '%s'", c.Auth.Mode, AuthOff, AuthEnforce)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis address must be specified when redis is enabled")
	}

	if c.Metrics.Enabled {
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics path %q must start with /", c.Metrics.Path)
		}
		if c.Metrics.Path == c.Path {
			return errors.New("metrics path collides with the websocket path")
		}
	}
	return nil
}
