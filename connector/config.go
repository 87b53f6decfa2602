package connector

import (
	"time"
)

// Config describes one named PostgreSQL pool. When DSN is set it is used
// as-is and the discrete connection fields are ignored.
type Config struct {
	DSN            string            `koanf:"dsn" json:"dsn" yaml:"dsn"`
	Host           string            `koanf:"host" json:"host" yaml:"host" validate:"required_without=DSN"`
	Port           int               `koanf:"port" json:"port" yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	Database       string            `koanf:"database" json:"database" yaml:"database" validate:"required_without=DSN"`
	Username       string            `koanf:"username" json:"username" yaml:"username"`
	Password       string            `koanf:"password" json:"password" yaml:"password"`
	SSLMode        string            `koanf:"ssl_mode" json:"ssl_mode" yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Params         map[string]string `koanf:"params" json:"params" yaml:"params"`
	Pool           PoolConfig        `koanf:"pool" json:"pool" yaml:"pool"`
	ConnectTimeout time.Duration     `koanf:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout" validate:"gte=0"`
	Retry          *RetryConfig      `koanf:"retry" json:"retry,omitempty" yaml:"retry,omitempty"`
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MaxOpen         int           `koanf:"max_open" json:"max_open" yaml:"max_open" validate:"gte=0"`
	MaxIdle         int           `koanf:"max_idle" json:"max_idle" yaml:"max_idle" validate:"gte=0"`
	MaxLifetime     time.Duration `koanf:"max_lifetime" json:"max_lifetime" yaml:"max_lifetime" validate:"gte=0"`
	MaxIdleTime     time.Duration `koanf:"max_idle_time" json:"max_idle_time" yaml:"max_idle_time" validate:"gte=0"`
	HealthCheckFreq time.Duration `koanf:"health_check_freq" json:"health_check_freq" yaml:"health_check_freq" validate:"gte=0"`
}

// RetryConfig defines connection retry behavior.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=1"`
	BaseDelay  time.Duration `koanf:"base_delay" json:"base_delay" yaml:"base_delay" validate:"gte=0"`
	MaxDelay   time.Duration `koanf:"max_delay" json:"max_delay" yaml:"max_delay" validate:"gte=0"`
	Backoff    float64       `koanf:"backoff" json:"backoff" yaml:"backoff" validate:"omitempty,gte=1"`
}

const (
	defaultPort        = 5432
	defaultMaxOpen     = 10
	defaultMaxIdle     = 5
	defaultMaxLifetime = time.Hour
	defaultMaxIdleTime = 30 * time.Minute
)

// withDefaults fills unset pool settings.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Pool.MaxOpen <= 0 {
		c.Pool.MaxOpen = defaultMaxOpen
	}
	if c.Pool.MaxIdle <= 0 {
		c.Pool.MaxIdle = min(defaultMaxIdle, c.Pool.MaxOpen)
	}
	if c.Pool.MaxLifetime == 0 {
		c.Pool.MaxLifetime = defaultMaxLifetime
	}
	if c.Pool.MaxIdleTime == 0 {
		c.Pool.MaxIdleTime = defaultMaxIdleTime
	}
	return c
}

// ConnString returns DSN when set, otherwise a postgres:// URL assembled
// from the discrete fields.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	c = c.withDefaults()
	return NewDSNBuilder("postgres").
		Auth(c.Username, c.Password).
		Host(c.Host, c.Port).
		Database(c.Database).
		Param("sslmode", c.SSLMode).
		Params(c.Params).
		Build()
}
