package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"invite-service/internal/config"
	"invite-service/internal/db"
	"invite-service/internal/health"
	"invite-service/internal/logger"
	"invite-service/internal/redis"
	"invite-service/internal/store"
	"invite-service/internal/store/resp"
)

const sweepInterval = 10 * time.Minute

type Infra struct {
	Store      store.Store
	Ping       health.Pinger
	HTTPClient *http.Client

	stopSweep context.CancelFunc
}

func (i *Infra) Close() error {
	if i.stopSweep != nil {
		i.stopSweep()
	}
	return i.Store.Close()
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	st, ping, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	infra := &Infra{
		Store:      st,
		Ping:       ping,
		HTTPClient: &http.Client{Timeout: cfg.HTTPClientTimeout},
	}

	if sweeper, ok := st.(*db.Store); ok {
		sweepCtx, cancel := context.WithCancel(context.Background())
		infra.stopSweep = cancel
		go sweep(sweepCtx, sweeper)
	}

	return infra, nil
}

// RedisOptions turns the store settings into connection options. REDIS_URL
// wins over the discrete host fields.
func RedisOptions(s config.Store) (redis.Options, error) {
	if s.RedisURL != "" {
		return redis.ParseURL(s.RedisURL, bool(s.TLSInsecure))
	}
	return redis.Options{
		Host:        s.RedisHost,
		Port:        s.RedisPort,
		Username:    s.RedisUser,
		Password:    s.RedisPass,
		TLS:         bool(s.RedisTLS),
		TLSInsecure: bool(s.RedisTLS) && bool(s.TLSInsecure),
	}, nil
}

// OpenStore connects the configured backend and returns it with its health
// probe. The probe is nil for the in-memory backend.
func OpenStore(ctx context.Context, s config.Store) (store.Store, health.Pinger, error) {
	switch s.Backend {
	case config.StoreRedis:
		opts, err := RedisOptions(s)
		if err != nil {
			return nil, nil, err
		}
		client, err := redis.New(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis ready", map[string]any{"addr": opts.Addr()})
		st := store.NewRedisStore(client.Client)
		return st, st.Ping, nil

	case config.StoreRESP:
		opts, err := RedisOptions(s)
		if err != nil {
			return nil, nil, err
		}
		client := resp.NewClient(opts, opts.ReadTimeout)
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("resp: connect %s: %w", opts.Addr(), err)
		}
		logger.Info("resp store ready", map[string]any{"addr": opts.Addr()})
		ping := func(ctx context.Context) error {
			return resp.Ping(ctx, opts, health.PingTimeout)
		}
		return client, ping, nil

	case config.StorePostgres:
		sqlDB, err := db.Open(ctx, s.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigration(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("db: migrate: %w", err)
		}
		logger.Info("database ready", nil)
		st := db.NewStore(sqlDB)
		return st, st.Ping, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store; sessions are lost on restart", nil)
		return store.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}

func sweep(ctx context.Context, st *db.Store) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.Sweep(ctx)
			if err != nil {
				logger.Warn("expired entry sweep failed", map[string]any{"error": err})
				continue
			}
			if n > 0 {
				logger.Debug("swept expired entries", map[string]any{"count": n})
			}
		}
	}
}
