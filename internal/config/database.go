// internal/config/database.go
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/javajoker/venuetrust/internal/retry"
)

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// Addr is the listen address. An empty host listens on every interface.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Backoff converts the retry section into the backoff used by collaborators.
func (r *RetryConfig) Backoff() *retry.Config {
	return &retry.Config{
		MaxRetries:   r.MaxRetries,
		InitialDelay: time.Duration(r.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(r.MaxDelayMs) * time.Millisecond,
		Multiplier:   r.Multiplier,
		JitterFactor: r.JitterFactor,
	}
}
