package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/infrastructure/auth"
	"github.com/subsync/backend/internal/infrastructure/config"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/infrastructure/migration"
	"github.com/subsync/backend/internal/infrastructure/persistence"
)

const defaultTokenTTL = time.Hour

func main() {
	var (
		migrationsPath string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: embedded migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if migrationsPath != "" {
		absPath, err := filepath.Abs(migrationsPath)
		if err != nil {
			log.Fatal("Failed to get absolute path", zap.Error(err))
		}
		migrationsPath = absPath
	}

	log.Debug("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	// Commands that need no database
	switch command {
	case "list":
		names, err := migration.List(migration.Source(migrationsPath))
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		if len(names) == 0 {
			log.Info("No migrations found")
			return
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return

	case "issue-token":
		issueToken(cfg, args[1:], log)
		return

	case "prune-ledger":
		pruneLedger(cfg, args[1:], log)
		return
	}

	if cfg.Database.Driver == config.DriverSQLite {
		if command != "up" {
			// sqlite schemas come from AutoMigrate and carry no version table
			log.Fatal("Only 'up' is supported for sqlite", zap.String("command", command))
		}
		db, err := persistence.NewDatabase(&cfg.Database)
		if err != nil {
			log.Fatal("Failed to open database", zap.Error(err))
		}
		defer db.Close()
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Schema migration failed", zap.Error(err))
		}
		log.Info("sqlite schema is up to date")
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "step":
		if len(args) < 2 {
			log.Fatal("Step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		pending, err := m.Pending()
		if err != nil {
			log.Fatal("Failed to list pending migrations", zap.Error(err))
		}
		log.Info("Migration status",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
			zap.Int("pending", len(pending)),
		)
		for _, name := range pending {
			fmt.Println(name)
		}

	case "force":
		if len(args) < 2 {
			log.Fatal("Version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		if err := m.Force(version); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// pruneLedger deletes processed_events rows older than the given age
func pruneLedger(cfg *config.Config, args []string, log *zap.Logger) {
	if len(args) < 1 {
		log.Fatal("Age required. Usage: migrate prune-ledger <duration>")
	}
	age, err := time.ParseDuration(args[0])
	if err != nil || age <= 0 {
		log.Fatal("Invalid age, expected a positive duration such as 720h", zap.String("value", args[0]))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := persistence.NewGormProcessedEventRepository(db.DB).PruneOlderThan(ctx, age)
	if err != nil {
		log.Fatal("Ledger prune failed", zap.Error(err))
	}
	log.Info("Ledger pruned",
		zap.Duration("older_than", age),
		zap.Int64("removed", removed),
	)
}

// issueToken prints a signed admin token to stdout
func issueToken(cfg *config.Config, args []string, log *zap.Logger) {
	if len(args) < 1 {
		log.Fatal("Subject required. Usage: migrate issue-token <subject> [ttl]")
	}
	ttl := defaultTokenTTL
	if len(args) > 1 {
		parsed, err := time.ParseDuration(args[1])
		if err != nil || parsed <= 0 {
			log.Fatal("Invalid ttl, expected a positive duration such as 30m", zap.String("value", args[1]))
		}
		ttl = parsed
	}

	tokens, err := auth.NewTokenService(cfg.Admin)
	if err != nil {
		log.Fatal("Admin token service unavailable", zap.Error(err))
	}
	token, err := tokens.IssueToken(args[0], ttl)
	if err != nil {
		log.Fatal("Failed to issue token", zap.Error(err))
	}
	log.Info("Admin token issued",
		zap.String("subject", args[0]),
		zap.Duration("ttl", ttl),
	)
	fmt.Println(token)
}

func printUsage() {
	fmt.Println(`Subscription sync database tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                        Apply all pending migrations (sqlite: create tables)
  down                      Roll back all migrations
  step <n>                  Apply n migrations (positive=up, negative=down)
  version                   Show current migration version
  status                    Show version and print pending migrations
  force <version>           Force set migration version (use with caution)
  list                      List available migrations
  prune-ledger <duration>   Delete processed events older than duration
  issue-token <sub> [ttl]   Print an admin API token (default ttl 1h)

Flags:
  -path string          Path to migrations directory (default: embedded)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  SUBSYNC_DATABASE_* configure the connection, SUBSYNC_ADMIN_JWT_SECRET signs tokens

Examples:
  migrate up
  migrate step -1
  migrate prune-ledger 720h
  migrate issue-token ops@example.com 30m`)
}
