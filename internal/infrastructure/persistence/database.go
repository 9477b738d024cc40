package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/subsync/backend/internal/infrastructure/config"
)

// Database is the gorm handle shared by the ledger and audit repositories
type Database struct {
	DB     *gorm.DB
	Driver string
}

// NewDatabase opens the configured database with gorm logging silenced.
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return NewDatabaseWithLogger(cfg, logger.Default.LogMode(logger.Silent))
}

// NewDatabaseWithLogger opens the configured database, applies the pool
// settings and pings it. sqlite is limited to one open connection.
func NewDatabaseWithLogger(cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	dialector, prepare, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            prepare,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driverName(cfg.Driver), err)
	}

	d := &Database{DB: db, Driver: cfg.Driver}
	pool, err := d.sqlDB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite {
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
		pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := pool.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s database: %w", driverName(cfg.Driver), err)
	}
	return d, nil
}

// dialectorFor picks the gorm dialector; prepared statements are postgres only.
func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, bool, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN()), false, nil
	case config.DriverPostgres, "":
		return postgres.Open(cfg.DSN()), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func driverName(driver string) string {
	if driver == "" {
		return config.DriverPostgres
	}
	return driver
}

func (d *Database) sqlDB() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	return pool, nil
}

func (d *Database) Close() error {
	pool, err := d.sqlDB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// Ping satisfies the readiness check contract
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.sqlDB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// AutoMigrate creates the tables from the models. Postgres deployments use
// cmd/migrate instead.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(Models()...)
}

// Stats returns the connection pool statistics.
func (d *Database) Stats() (sql.DBStats, error) {
	pool, err := d.sqlDB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return pool.Stats(), nil
}
