package config

import "time"

// Identity binding modes.
const (
	AuthOff     = "off"
	AuthEnforce = "enforce"
)

// SocketConfig holds WebSocket server configuration.
type SocketConfig struct {
	Addr            string   `mapstructure:"addr"`
	Path            string   `mapstructure:"path"`
	LogLevel        string   `mapstructure:"log_level"`
	MaxConnections  int      `mapstructure:"max_connections"`
	PingInterval    int      `mapstructure:"ping_interval_seconds"`
	PongWait        int      `mapstructure:"pong_wait_seconds"`
	WriteTimeout    int      `mapstructure:"write_timeout_seconds"`
	ReadBufferSize  int      `mapstructure:"read_buffer_size"`
	WriteBufferSize int      `mapstructure:"write_buffer_size"`
	SendBuffer      int      `mapstructure:"send_buffer"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`

	Auth    AuthConfig    `mapstructure:"auth"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// AuthConfig controls identity binding at connect time.
type AuthConfig struct {
	Mode            string `mapstructure:"mode"`
	Secret          string `mapstructure:"secret"`
	CookieName      string `mapstructure:"cookie_name"`
	TokenQueryParam string `mapstructure:"token_query_param"`
}

// RedisConfig holds connection settings for the revocation list and the
// event ingest.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// MongoConfig points at the users collection. Empty URI disables it.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultConfig returns the default WebSocket configuration.
func DefaultConfig() *SocketConfig {
	return &SocketConfig{
		Addr:            ":5000",
		Path:            "/ws",
		LogLevel:        "info",
		MaxConnections:  1000,
		PingInterval:    25,
		PongWait:        60,
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		AllowedOrigins:  []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		Auth: AuthConfig{
			Mode:            AuthOff,
			CookieName:      "jwt",
			TokenQueryParam: "token",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "socialnet:ws:",
		},
		Mongo: MongoConfig{
			Database:   "socialnet",
			Collection: "users",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func (c *SocketConfig) PingDuration() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

func (c *SocketConfig) PongDuration() time.Duration {
	return time.Duration(c.PongWait) * time.Second
}

func (c *SocketConfig) WriteDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}
