// Package commands implements roomctl, the operator CLI for the changing
// room backend. It talks to the database directly and reuses the same
// services as the HTTP API.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/config"
	"github.com/tbourn/go-changingroom-backend/internal/domain"
	httpapi "github.com/tbourn/go-changingroom-backend/internal/http"
	"github.com/tbourn/go-changingroom-backend/internal/repo"
	"github.com/tbourn/go-changingroom-backend/internal/sysutil"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// env is the state shared by every subcommand of one invocation.
type env struct {
	driver string
	dbPath string
	dbURL  string
	store  string
	actor  string
	debug  bool

	cfg  config.Config
	db   *gorm.DB
	room *httpapi.Room
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "roomctl",
		Short: "Operate a changing room backend from the terminal",
		Long: `roomctl inspects and maintains the changing room database: sessions,
baskets, the back-of-house queue and the shrinkage log.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.driver, "db-driver", "", "database driver (sqlite|postgres), defaults to DB_DRIVER")
	pf.StringVar(&e.dbPath, "db-path", "", "SQLite file, defaults to DB_PATH")
	pf.StringVar(&e.dbURL, "database-url", "", "PostgreSQL DSN, defaults to DATABASE_URL")
	pf.StringVar(&e.store, "store", os.Getenv("ROOMCTL_STORE"), "store id")
	pf.StringVar(&e.actor, "actor", sysutil.FirstNonEmpty(os.Getenv("ROOMCTL_ACTOR"), "roomctl"), "team member id recorded on changes")
	pf.BoolVar(&e.debug, "debug", false, "log at debug level")

	root.AddCommand(newMigrateCmd(e))
	root.AddCommand(newSessionsCmd(e))
	root.AddCommand(newBasketsCmd(e))
	root.AddCommand(newBackOfHouseCmd(e))
	root.AddCommand(newShrinkageCmd(e))
	root.AddCommand(newJanitorCmd(e))
	root.AddCommand(newVersionCmd())
	return root
}

// withDB wraps a command function to open the database first
func withDB(e *env, fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := e.open(cmd); err != nil {
			return err
		}
		defer e.close()
		return fn(cmd, args)
	}
}

func (e *env) open(cmd *cobra.Command) error {
	_ = godotenv.Load()
	// Flags win over the environment; config.Load validates the result.
	for k, v := range map[string]string{"DB_DRIVER": e.driver, "DB_PATH": e.dbPath, "DATABASE_URL": e.dbURL} {
		if v != "" {
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if e.debug {
		level = "debug"
	}
	sysutil.ConfigureLogger(level, true, cmd.ErrOrStderr())

	opts := repo.Options{Driver: cfg.DBDriver, Path: cfg.DBPath, URL: cfg.DatabaseURL}
	db, err := repo.Open(opts)
	if err != nil {
		return fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	e.cfg = cfg
	e.db = db
	e.room = httpapi.NewRoom(db, nil, cfg)
	return nil
}

func (e *env) close() {
	if e.db == nil {
		return
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	e.db, e.room = nil, nil
}

// actorFor returns the identity used for store-scoped calls.
func (e *env) actorFor() (domain.Actor, error) {
	a := domain.Actor{ID: e.actor, StoreID: e.store, Role: "operator"}
	if !a.Valid() {
		return a, errors.New("--store (or ROOMCTL_STORE) and --actor are required")
	}
	return a, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roomctl %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			if err := repo.AutoMigrate(e.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}),
	}
}
