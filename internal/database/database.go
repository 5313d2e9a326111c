// Package database opens the two storage backends: Postgres for durable rows
// (users, rooms, replays) and Redis for the runtime snapshots.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/moonvale/werewolf/backend/internal/config"
)

const connectTimeout = 10 * time.Second

type Database struct {
	PG    *pgxpool.Pool
	Redis *redis.Client
}

// NewDatabase connects and pings both backends; a server that cannot reach
// either refuses to boot.
func NewDatabase(cfg *config.Config) (*Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pg, err := newPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Database{PG: pg, Redis: rdb}, nil
}

func newPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Sized for a handful of game servers sharing one instance.
	pc.MaxConns = 25
	pc.MinConns = 5
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return pool, nil
}

func (db *Database) Close() {
	if db.PG != nil {
		db.PG.Close()
	}
	if db.Redis != nil {
		db.Redis.Close()
	}
}

// Health backs the /health endpoint.
func (db *Database) Health(ctx context.Context) error {
	if err := db.PG.Ping(ctx); err != nil {
		return fmt.Errorf("postgresql unhealthy: %w", err)
	}
	if err := db.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return nil
}
