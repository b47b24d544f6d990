package app

import (
	"context"
	"errors"
	"time"

	"sicxe-web/internal/config"
	"sicxe-web/internal/db"
	"sicxe-web/internal/logger"
	"sicxe-web/internal/redis"
	"sicxe-web/internal/session"
)

const sweepInterval = 10 * time.Minute

// Infra holds the session backend and whatever connection it runs on.
type Infra struct {
	Sessions session.Store

	db    *db.DB
	redis *redis.Client
	stop  context.CancelFunc
	done  chan struct{}
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		infra.redis = client
		infra.Sessions = session.NewRedisStore(client.Client)
		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	case config.SessionBackendPostgres:
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		infra.db = database
		store := session.NewPostgresStore(database.DB)
		infra.Sessions = store
		infra.startSweeper(func(ctx context.Context) {
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("session sweep failed", map[string]any{"error": err.Error()})
				return
			}
			if n > 0 {
				logger.Debug("expired sessions removed", map[string]any{"rows": n})
			}
		})
		logger.Info("database ready", nil)

	case config.SessionBackendMemory:
		store := session.NewMemoryStore()
		infra.Sessions = store
		infra.startSweeper(func(context.Context) { store.Cleanup() })
		logger.Warn("using in-memory sessions; they are lost on restart", nil)

	default:
		return nil, errors.New("app: unknown session backend " + cfg.SessionBackend)
	}

	return infra, nil
}

// startSweeper runs fn periodically until Close.
func (i *Infra) startSweeper(fn func(context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	i.stop = cancel
	i.done = make(chan struct{})

	go func() {
		defer close(i.done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

func (i *Infra) Close() error {
	if i.stop != nil {
		i.stop()
		<-i.done
	}

	var errs []error
	if i.db != nil {
		errs = append(errs, i.db.Close())
	}
	if i.redis != nil {
		errs = append(errs, i.redis.Close())
	}
	return errors.Join(errs...)
}
