package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arisex96/bio-mat-new/internal/config"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/database/postgres"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

var configOnly = map[string]string{annotationConfigOnly: "true"}

// NewDBCmd groups the PostgreSQL schema commands. They read the database
// section of the configuration and never load a catalog.
func NewDBCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the PostgreSQL catalog schema",
	}
	cmd.PersistentFlags().StringVar(&source, "migrations", "", "migration source URL, e.g. file://./migrations (default: built in)")
	cmd.AddCommand(
		newDBMigrateCmd(&source),
		newDBRollbackCmd(&source),
		newDBStatusCmd(&source),
		newDBForceCmd(&source),
	)
	return cmd
}

type schemaStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// databaseURL returns the migration URL for the configured PostgreSQL
// database.
func databaseURL(cmd *cobra.Command) (string, logging.Logger, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return "", nil, err
	}
	if cliCtx.Config == nil {
		return "", nil, errors.New(errors.ErrCodeInternal, "command runs without configuration")
	}
	db := cliCtx.Config.Database
	switch db.Driver {
	case config.DriverPostgres, config.DriverPGX:
	default:
		return "", nil, errors.New(errors.ErrCodeConfigError, "schema commands need a postgres database").
			WithDetailf("database.driver is %q", db.Driver)
	}
	return postgres.BuildDSN(db.Postgres), cliCtx.Logger, nil
}

func newDBMigrateCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Apply pending migrations",
		Args:        cobra.NoArgs,
		Annotations: configOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, log, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dsn, *source); err != nil {
				return err
			}
			log.Info("schema migrated")
			return printSchemaStatus(cmd, dsn, *source, "schema is up to date")
		},
	}
}

func newDBRollbackCmd(source *string) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:         "rollback",
		Short:       "Undo the most recent migrations",
		Args:        cobra.NoArgs,
		Annotations: configOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, log, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(dsn, *source, steps); err != nil {
				return err
			}
			log.Info("schema rolled back", logging.Int("steps", steps))
			return printSchemaStatus(cmd, dsn, *source, fmt.Sprintf("rolled back %d step(s)", steps))
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to undo")
	return cmd
}

func newDBStatusCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show the applied schema version",
		Args:        cobra.NoArgs,
		Annotations: configOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			return printSchemaStatus(cmd, dsn, *source, "")
		},
	}
}

func newDBForceCmd(source *string) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Mark a schema version as applied and clear the dirty flag",
		Long: "force does not run any migration. Use it after repairing a migration\n" +
			"that failed half-way; -1 resets the schema to no version.",
		Args:        cobra.ExactArgs(1),
		Annotations: configOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New(errors.ErrCodeBadRequest, "schema version must be an integer").WithDetail(args[0])
			}
			dsn, log, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := postgres.ForceMigrationVersion(dsn, *source, version); err != nil {
				return err
			}
			log.Warn("schema version forced", logging.Int("version", version))
			return printSchemaStatus(cmd, dsn, *source, "")
		},
	}
}

func printSchemaStatus(cmd *cobra.Command, dsn, source, headline string) error {
	version, dirty, err := postgres.MigrationStatus(dsn, source)
	if err != nil {
		return err
	}
	st := schemaStatus{Version: version, Dirty: dirty}

	state := color.GreenString("clean")
	if dirty {
		state = color.RedString("dirty")
	}
	var lines []string
	if headline != "" {
		lines = append(lines, headline)
	}
	lines = append(lines, fmt.Sprintf("schema version %d (%s)", version, state))
	return PrintResult(cmd, st, view{lines: lines})
}
