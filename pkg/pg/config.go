package pg

import "time"

// Config is read from the environment by pkg/config.
type Config struct {
	URL string `env:"DATABASE_URL,required"`

	MaxConns          int32         `env:"PG_MAX_CONNS" envDefault:"10"`
	MinConns          int32         `env:"PG_MIN_CONNS" envDefault:"2"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	// Connect tries this many times, waiting ConnectBackoff*n after the n-th failure.
	ConnectAttempts int           `env:"PG_CONNECT_ATTEMPTS" envDefault:"3"`
	ConnectBackoff  time.Duration `env:"PG_CONNECT_BACKOFF" envDefault:"2s"`

	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"billing_migrations"`
	AutoMigrate     bool   `env:"PG_AUTO_MIGRATE" envDefault:"true"`
}
