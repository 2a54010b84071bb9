package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ftpd/ftpd/internal/authdb"
)

// Option configures a Server at construction time.
type Option func(*Server) error

// WithDriver sets the filesystem driver. Required.
func WithDriver(d Driver) Option {
	return func(s *Server) error {
		if d == nil {
			return fmt.Errorf("driver must not be nil")
		}
		s.driver = d
		return nil
	}
}

// WithVerifier sets the credential verifier consulted by the PASS handler.
// Required.
func WithVerifier(v authdb.Verifier) Option {
	return func(s *Server) error {
		if v == nil {
			return fmt.Errorf("verifier must not be nil")
		}
		s.verifier = v
		return nil
	}
}

// WithRootDir sets the directory every session is jailed to. Required.
func WithRootDir(path string) Option {
	return func(s *Server) error {
		if path == "" {
			return fmt.Errorf("root dir must not be empty")
		}
		s.rootDir = path
		return nil
	}
}

// WithWorkers sets the fixed worker-pool size. Defaults to 8.
func WithWorkers(n int) Option {
	return func(s *Server) error {
		if n < 1 {
			return fmt.Errorf("workers must be >= 1")
		}
		s.workers = n
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = l
		return nil
	}
}

// WithMaxConnections caps the number of simultaneous control connections.
// 0 means unlimited.
func WithMaxConnections(n int) Option {
	return func(s *Server) error {
		s.maxConnections = n
		return nil
	}
}

// WithMaxIdleTime sets how long an idle control connection is tolerated
// before being closed.
func WithMaxIdleTime(d time.Duration) Option {
	return func(s *Server) error {
		s.maxIdleTime = d
		return nil
	}
}

// WithBandwidthLimit caps aggregate data-channel throughput in bytes per
// second, shared across every session. 0 means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		s.bandwidthLimit = bytesPerSecond
		return nil
	}
}

// WithPassivePortRange bounds the ports PASV listeners are opened on.
func WithPassivePortRange(min, max int) Option {
	return func(s *Server) error {
		if min > 0 && max > 0 && min > max {
			return fmt.Errorf("passive port range: min must be <= max")
		}
		s.settings.PasvMinPort = min
		s.settings.PasvMaxPort = max
		return nil
	}
}

// WithPublicHost sets the address advertised in PASV replies.
func WithPublicHost(host string) Option {
	return func(s *Server) error {
		s.settings.PublicHost = host
		return nil
	}
}

// WithMetricsCollector attaches an optional MetricsCollector.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = m
		return nil
	}
}

// WithWelcomeMessage overrides the banner sent on connect.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) error {
		s.welcomeMessage = msg
		return nil
	}
}
