package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/l1jgo/framecore/internal/config"
)

// ApplicationName tags journal connections in pg_stat_activity.
const ApplicationName = "framecore-journal"

const pingTimeout = 5 * time.Second

// DB is the journal's connection pool. The journal writes from one
// goroutine, so the pool stays small.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// poolConfig turns the database section into a pool config. Idle
// connections are capped at the open limit.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	pc.MinConns = int32(min(cfg.MaxIdleConns, int(pc.MaxConns)))
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return pc, nil
}

// NewDB opens the journal pool and verifies it with a ping.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open journal pool: %w", err)
	}
	db := &DB{Pool: pool, log: log}
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Debug("journal database connected",
		zap.String("host", pc.ConnConfig.Host),
		zap.String("database", pc.ConnConfig.Database),
		zap.Int32("max_conns", pc.MaxConns))
	return db, nil
}

// Ping checks the pool within pingTimeout.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping journal db: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	db.Pool.Close()
}
