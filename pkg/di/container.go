package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goliatone/go-restaurant-sync/cache"
	"github.com/goliatone/go-restaurant-sync/connectivity"
	"github.com/goliatone/go-restaurant-sync/remote"
	"github.com/goliatone/go-restaurant-sync/restaurantcache"
	"github.com/goliatone/go-restaurant-sync/store"
)

// Container wires the store, remote client, coalescing cache, write engine and
// connectivity coordinator from a single Config. It owns the store and closes it.
type Container struct {
	config        Config
	logger        *slog.Logger
	httpClient    *http.Client
	store         *store.Store
	client        *remote.Client
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	status        *connectivity.Status
	engine        *restaurantcache.Engine
	coordinator   *connectivity.Coordinator
}

// Option customizes a Container.
type Option func(*Container)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used by the remote client. The configured timeout is
// not applied to it.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Container) {
		c.httpClient = client
	}
}

// NewContainer validates cfg and builds every component. The store is opened, and its
// schema upgraded, before NewContainer returns.
func NewContainer(ctx context.Context, cfg Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config: %w", err)
	}

	c := &Container{config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	clientOpts := []remote.ClientOption{
		remote.WithLogger(c.logger),
	}
	if c.httpClient != nil {
		clientOpts = append(clientOpts, remote.WithHTTPClient(c.httpClient))
	} else {
		clientOpts = append(clientOpts, remote.WithTimeout(cfg.Timeout.Std()))
	}

	client, err := remote.New(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	cacheService, err := cache.NewCacheService(cfg.CacheServiceConfig())
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store, store.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	c.store = st
	c.client = client
	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer()
	c.status = connectivity.NewStatus(cfg.Online)
	c.engine = restaurantcache.New(st, client, cacheService, c.keySerializer,
		restaurantcache.WithConnectivity(c.status),
		restaurantcache.WithLogger(c.logger),
	)
	c.coordinator = connectivity.New(c.status, c.engine,
		connectivity.WithLogger(c.logger),
		connectivity.WithMaxAttempts(cfg.Replay.MaxAttempts),
	)
	return c, nil
}

// NewContainerWithDefaults builds a Container from DefaultConfig.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, DefaultConfig(), opts...)
}

// Config returns the configuration the container was built from.
func (c *Container) Config() Config {
	return c.config
}

// Store returns the durable store.
func (c *Container) Store() *store.Store {
	return c.store
}

// Remote returns the remote client.
func (c *Container) Remote() *remote.Client {
	return c.client
}

// CacheService returns the coalescing cache used for remote reads.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the key serializer used for coalescing keys.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Engine returns the read and write engine.
func (c *Container) Engine() *restaurantcache.Engine {
	return c.engine
}

// Coordinator returns the connectivity and replay coordinator.
func (c *Container) Coordinator() *connectivity.Coordinator {
	return c.coordinator
}

// Close releases the store.
func (c *Container) Close() error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Close(); err != nil && !errors.Is(err, store.ErrStoreUnavailable) {
		return err
	}
	return nil
}
