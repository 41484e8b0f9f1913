package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type upCmd struct{}

type downCmd struct {
	Yes bool `arg:"-y,--yes" help:"confirm rolling back every migration"`
}

type stepsCmd struct {
	N int `arg:"positional,required" help:"number of migrations to apply (negative rolls back)"`
}

type gotoCmd struct {
	Version uint `arg:"positional,required"`
}

type forceCmd struct {
	Version int `arg:"positional,required"`
}

type versionCmd struct{}

type createCmd struct {
	Name string `arg:"positional,required" help:"short description, e.g. \"add customer email index\""`
}

type listCmd struct{}

type args struct {
	Path     string `arg:"--path,env:CRM_MIGRATIONS_PATH" help:"migrations directory (default: database.migrations_path)"`
	LogLevel string `arg:"--log-level" default:"info" help:"debug, info, warn or error"`

	Up      *upCmd      `arg:"subcommand:up" help:"apply all pending migrations"`
	Down    *downCmd    `arg:"subcommand:down" help:"roll back all migrations"`
	Steps   *stepsCmd   `arg:"subcommand:steps" help:"apply or roll back N migrations"`
	Goto    *gotoCmd    `arg:"subcommand:goto" help:"migrate to a specific version"`
	Force   *forceCmd   `arg:"subcommand:force" help:"set the version without running migrations"`
	Version *versionCmd `arg:"subcommand:version" help:"print the current version"`
	Create  *createCmd  `arg:"subcommand:create" help:"write a new up/down migration pair"`
	List    *listCmd    `arg:"subcommand:list" help:"list migration files"`
}

func (args) Description() string {
	return "Schema migrations for the customer store (Postgres)"
}

func main() {
	_ = godotenv.Load()

	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing command")
	}

	log, err := logger.New(&logger.Config{Level: a.LogLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	path := a.Path
	if path == "" {
		path = cfg.Database.MigrationsPath
	}

	// create and list only touch the filesystem
	switch {
	case a.Create != nil:
		mf, err := migration.NewCreator(path).Create(a.Create.Name)
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return
	case a.List != nil:
		names, err := migration.NewCreator(path).List()
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal("SQL migrations require the postgres driver; sqlite stores are auto-migrated on start",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		log.Fatal("Failed to initialize migrator", zap.Error(err))
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()

	if err := run(m, &a); err != nil {
		log.Error("Migration failed", zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(m *migration.Migrator, a *args) error {
	switch {
	case a.Up != nil:
		return m.Up()
	case a.Down != nil:
		if !a.Down.Yes {
			return fmt.Errorf("refusing to roll back every migration without --yes")
		}
		return m.Down()
	case a.Steps != nil:
		return m.Steps(a.Steps.N)
	case a.Goto != nil:
		return m.GoTo(a.Goto.Version)
	case a.Force != nil:
		return m.Force(a.Force.Version)
	case a.Version != nil:
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	}
	return nil
}
