package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hybridq/internal/db"
)

var _ db.Store = (*Store)(nil)

// Driver names the server flavor behind the embedding cache. Both speak RESP,
// so one rueidis client serves either.
type Driver string

// Supported drivers.
const (
	DriverValkey Driver = "valkey"
	DriverRedis  Driver = "redis"
)

// IsValid reports whether d is a supported driver.
func (d Driver) IsValid() bool { return d == DriverValkey || d == DriverRedis }

// clientName is reported via CLIENT SETNAME so cache connections are identifiable.
const clientName = "hybridq-embcache"

const readyPollInterval = 100 * time.Millisecond

// Config holds connection parameters for the embedding cache.
type Config struct {
	Driver   Driver // default: valkey
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Validate checks the connection parameters.
func (c Config) Validate() error {
	if c.Driver != "" && !c.Driver.IsValid() {
		return fmt.Errorf("unknown cache driver %q", c.Driver)
	}
	if len(c.Addrs) == 0 {
		return fmt.Errorf("addrs is required")
	}
	return nil
}

// Store is the embedding cache backend.
type Store struct {
	client rueidis.Client
	driver Driver
}

// NewStore connects a rueidis client with client-side caching disabled.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverValkey
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   clientName,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	return &Store{client: client, driver: driver}, nil
}

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c, driver: DriverValkey}
}

// Driver returns the configured server flavor.
func (s *Store) Driver() Driver { return s.driver }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings right away and then on a short interval until the cache
// answers. On timeout the last ping error is returned with the deadline.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready after %s: %w", s.driver, timeout, errors.Join(ctx.Err(), lastErr))
		case <-ticker.C:
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
