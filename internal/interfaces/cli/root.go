// Package cli implements matsel, the command-line front end of the material
// selection engine. Commands run against the same services as the API
// server, wired from the configuration file plus an optional local catalog.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Arisex96/bio-mat-new/internal/config"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/platform"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	FormatText        = "text"
	FormatTableOutput = "table"
	FormatJSON        = "json"
)

// Command annotations. Commands marked no-platform load nothing; commands
// marked config-only get Config and Logger but no services.
const (
	annotationNoPlatform = "matsel/no-platform"
	annotationConfigOnly = "matsel/config-only"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	CatalogPath  string
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Platform     *platform.Platform
	OutputFormat string
	NoColor      bool
}

type rootState struct {
	opts   RootOptions
	cli    *CLIContext
	cancel context.CancelFunc
}

func (st *rootState) close() error {
	if st.cancel != nil {
		st.cancel()
	}
	if st.cli == nil || st.cli.Platform == nil {
		return nil
	}
	err := st.cli.Platform.Close()
	st.cli.Platform = nil
	return err
}

// NewRootCommand creates the root command with every subcommand registered.
// The caller owns closing the platform; prefer Run.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootState{})
}

func newRootCommand(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matsel",
		Short: "Rank engineering materials against property requirements",
		Long: "matsel ranks a catalog of engineering materials by weighted distance to a\n" +
			"set of mechanical property requirements and explores the catalog through\n" +
			"deviation tables, correlation matrices and a PCA projection.",
		Version: Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, st)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&st.opts.ConfigPath, "config", "c", "", "config file path (default: ./matsel.yaml)")
	pf.StringVar(&st.opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&st.opts.OutputFormat, "output", "o", FormatTableOutput, "output format (text, table, json)")
	pf.StringVar(&st.opts.CatalogPath, "catalog", "", "catalog CSV file, tried before the configured sources")
	pf.BoolVar(&st.opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&st.opts.Timeout, "timeout", 30*time.Second, "global operation timeout")

	cmd.AddCommand(
		NewRankCmd(),
		NewDeviationsCmd(),
		NewCorrelateCmd(),
		NewPCACmd(),
		NewExportCmd(),
		NewCatalogCmd(),
		NewDBCmd(),
		NewVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, st *rootState) error {
	switch st.opts.OutputFormat {
	case FormatText, FormatTableOutput, FormatJSON:
	default:
		return errors.New(errors.ErrCodeBadRequest, "invalid output format").
			WithDetailf("%q; expected text, table or json", st.opts.OutputFormat)
	}
	if st.opts.NoColor || st.opts.OutputFormat == FormatJSON {
		color.NoColor = true
	}

	cliCtx := &CLIContext{OutputFormat: st.opts.OutputFormat, NoColor: color.NoColor}
	st.cli = cliCtx

	ctx := cmd.Context()
	if st.opts.Timeout > 0 {
		ctx, st.cancel = context.WithTimeout(ctx, st.opts.Timeout)
	}

	if cmd.Annotations[annotationNoPlatform] == "" {
		cfg, err := initConfig(&st.opts)
		if err != nil {
			return err
		}
		logger, err := initLogger(&st.opts)
		if err != nil {
			return err
		}
		cliCtx.Config = cfg
		cliCtx.Logger = logger
		if cmd.Annotations[annotationConfigOnly] == "" {
			p, err := platform.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			cliCtx.Platform = p
		}
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads the configuration file, searching the default locations
// when --config is not set, and applies the CLI overrides. Without any file
// the configuration comes from MATSEL_* variables and defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = findConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cfg.Metrics.Enabled = false
	if opts.CatalogPath != "" {
		cfg.Catalog.FilePath = opts.CatalogPath
		sources := []string{config.SourceFile}
		for _, s := range cfg.Catalog.Sources {
			if s != config.SourceFile {
				sources = append(sources, s)
			}
		}
		cfg.Catalog.Sources = sources
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{"matsel.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".matsel", "config.yaml"))
	}
	candidates = append(candidates, "/etc/matsel/config.yaml")
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// initLogger creates a console logger on stderr so that command output on
// stdout stays machine readable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// platformOf returns the wired platform of a command.
func platformOf(cmd *cobra.Command) (*CLIContext, *platform.Platform, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cliCtx.Platform == nil {
		return nil, nil, errors.New(errors.ErrCodeInternal, "command runs without services")
	}
	return cliCtx, cliCtx.Platform, nil
}

// Run executes the CLI with args and releases every dependency afterwards.
// Errors are also printed to errOut.
func Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	st := &rootState{}
	root := newRootCommand(st)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if cerr := st.close(); err == nil {
		err = cerr
	}
	if err != nil {
		PrintError(root, err)
	}
	return err
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoPlatform: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := struct {
				Version   string `json:"version"`
				Commit    string `json:"commit"`
				BuildDate string `json:"build_date"`
			}{Version, GitCommit, BuildDate}
			return PrintResult(cmd, info, view{lines: []string{
				"matsel " + Version,
				"commit:  " + GitCommit,
				"built:   " + BuildDate,
			}})
		},
	}
}
