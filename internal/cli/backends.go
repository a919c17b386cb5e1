package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quizdeck/internal/app"
	"quizdeck/internal/config"
	"quizdeck/internal/infra/memory"
	"quizdeck/internal/infra/postgres"
	redisinfra "quizdeck/internal/infra/redis"
	"quizdeck/internal/infra/sqlite"
)

// backends is the wired storage of one process.
type backends struct {
	sessions app.SessionRepository
	quizzes  app.QuizRepository
	progress app.ProgressStore
	users    app.UserRepository
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends opens the configured storage driver and layers Redis over it when configured.
func openBackends(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*backends, error) {
	b := &backends{}
	var loader memory.QuizLoader

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		loader = memory.NewStaticQuizLoader()
		b.progress = memory.NewProgressStore()
		b.users = memory.NewUserStore()
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { store.Close() })
		loader, b.progress, b.users = store, store, store
	case config.DriverPostgres:
		db := postgres.OpenBun(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { db.Close() })
		if _, err := postgres.Migrate(ctx, db); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.OpenPool(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		loader = postgres.NewQuizLoader(pool)
		b.progress = postgres.NewProgressStore(db)
		b.users = postgres.NewUserStore(db)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr == "" {
		b.quizzes = memory.NewQuizRepository(loader, quizTTL)
		b.sessions = memory.NewSessionStore()
		return b, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	b.closers = append(b.closers, func() { client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		b.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	b.quizzes = redisinfra.NewQuizRepository(client, loader, quizTTL, logger)
	b.sessions = redisinfra.NewSessionStore(client, redisTTL)
	if cfg.Storage.Driver == config.DriverMemory {
		// memory has no durable progress; Redis keeps checkpoints and history across restarts
		b.progress = redisinfra.NewProgressStore(client, 0)
	}
	logger.WithField("addr", cfg.Redis.Addr).Info("redis cache enabled")
	return b, nil
}

func newService(cfg config.Config, b *backends, logger logrus.FieldLogger) *app.QuizService {
	return app.NewQuizService(b.sessions, b.quizzes, b.progress, b.users, app.ServiceConfig{
		TimeLimit:          config.TTLDuration(cfg.Quiz.TimeLimit, 10*time.Minute),
		RequireAllAnswered: cfg.RequireAllAnswered(),
		Logger:             logger,
	})
}
