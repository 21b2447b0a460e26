package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/copybara/copybara/internal/builtins"
	"github.com/copybara/copybara/internal/config"
	"github.com/copybara/copybara/internal/console"
	"github.com/copybara/copybara/internal/loader"
	"github.com/copybara/copybara/internal/logger"
	"github.com/copybara/copybara/internal/migration"
	"github.com/copybara/copybara/internal/options"
)

type cliConfig struct {
	configRoot          string
	workDir             string
	logLevel            string
	dryRun              bool
	force               bool
	squash              bool
	iterative           bool
	lastRev             string
	changeRequestParent string
	ignoreNoop          bool
	parallelism         int
	folderOrigin        string
	folderDestination   string
	verbose             bool
}

var rootCmd = &cobra.Command{
	Use:   "copybara",
	Short: "Source code migration tool",
	Long: `copybara is a tool for transforming and moving code between repositories.

A migration reads a revision from an origin, runs a transformation
pipeline over a scratch checkout, and writes the result to a
destination, recording the origin revision so later runs import only
new work. Migrations are declared in Starlark config files
(conventionally copy.bara.sky).`,
	Example: `  # Run the default migration of a config
  copybara migrate copy.bara.sky

  # Run a specific migration with an explicit source ref
  copybara migrate copy.bara.sky my-migration v1.2.0

  # Validate a config without running anything
  copybara validate copy.bara.sky

  # Preview without writing to the destination
  copybara --dry-run migrate copy.bara.sky`,
}

func main() {
	cfg := &cliConfig{}
	rootCmd.PersistentFlags().StringVar(&cfg.configRoot, "config-root", "", "Root directory that absolute (//) config labels resolve against")
	rootCmd.PersistentFlags().StringVar(&cfg.workDir, "work-dir", "", "Scratch directory for checkouts (default: a temp dir)")
	rootCmd.PersistentFlags().StringVarP(&cfg.logLevel, "log-level", "l", "warn", "Set log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().BoolVar(&cfg.dryRun, "dry-run", false, "Run the migration without writing to the destination")
	rootCmd.PersistentFlags().BoolVar(&cfg.force, "force", false, "Bypass baseline safety checks and CHANGE_REQUEST previews")
	rootCmd.PersistentFlags().BoolVar(&cfg.squash, "squash", false, "Run the migration in SQUASH mode regardless of its declared mode")
	rootCmd.PersistentFlags().BoolVar(&cfg.iterative, "iterative", false, "Run the migration in ITERATIVE mode regardless of its declared mode")
	rootCmd.PersistentFlags().BoolVarP(&cfg.verbose, "verbose", "v", false, "Verbose console output")

	log := logger.New(cfg.logLevel)
	rootCmd.AddCommand(newMigrateCommand(log, cfg))
	rootCmd.AddCommand(newValidateCommand(log, cfg))
	rootCmd.AddCommand(newInfoCommand(log, cfg))
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		// Flags are parsed by now; apply --log-level to the shared logger
		if level := hclog.LevelFromString(cfg.logLevel); level != hclog.NoLevel {
			log.SetLevel(level)
		}
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *cliConfig) bundle(log hclog.Logger) options.Bundle {
	con := console.NewTerminal(os.Stdout, c.verbose)
	opts := options.NewBundle(log, con)
	opts.General.ConfigRoot = c.configRoot
	opts.General.WorkDirRoot = c.workDir
	opts.General.DryRun = c.dryRun
	opts.General.Force = c.force
	if c.squash {
		opts.Workflow.ModeOverride = "SQUASH"
	}
	if c.iterative {
		opts.Workflow.ModeOverride = "ITERATIVE"
	}
	opts.Workflow.LastRevision = c.lastRev
	opts.Workflow.ChangeRequestParent = c.changeRequestParent
	opts.Workflow.IgnoreNoop = c.ignoreNoop
	if c.parallelism > 0 {
		opts.Workflow.Parallelism = c.parallelism
	}
	opts.Folder.OriginDir = c.folderOrigin
	opts.Folder.DestinationDir = c.folderDestination
	return opts
}

func loadConfig(log hclog.Logger, cfg *cliConfig, configPath string) (*migration.Config, options.Bundle, error) {
	opts := cfg.bundle(log)
	if err := opts.Validate(); err != nil {
		return nil, opts, err
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, opts, err
	}
	root, err := config.NewPathFile(abs, cfg.configRoot)
	if err != nil {
		return nil, opts, err
	}

	l := loader.New(opts, builtins.Globals(), builtins.Modules()...)
	loaded, err := l.Load(root)
	if err != nil {
		return nil, opts, err
	}
	return loaded, opts, nil
}

func newMigrateCommand(log hclog.Logger, cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <config> [migration] [source-ref...]",
		Short: "Run a migration from the given config file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.squash && cfg.iterative {
				return fmt.Errorf("--squash and --iterative are mutually exclusive")
			}
			loaded, opts, err := loadConfig(log, cfg, args[0])
			if err != nil {
				return err
			}

			name := migration.DefaultName
			var sourceRefs []string
			if len(args) > 1 {
				name = args[1]
				sourceRefs = args[2:]
			}

			if messages := migration.Validate(loaded, []string{name}); migration.HasErrors(messages) {
				printMessages(messages)
				return fmt.Errorf("config validation failed")
			}

			m, err := loaded.Migration(name)
			if err != nil {
				return err
			}

			log.Info("Running migration", "name", name, "config", loaded.RootPath, "mode", m.ModeName())
			if cfg.dryRun {
				fmt.Println("DRY RUN MODE - the destination will not be modified")
			}
			return m.Run(cmd.Context(), opts.General.WorkDirRoot, sourceRefs)
		},
	}

	cmd.Flags().StringVar(&cfg.lastRev, "last-rev", "", "Override the baseline recorded in the destination")
	cmd.Flags().StringVar(&cfg.changeRequestParent, "change-request-parent", "", "Baseline for CHANGE_REQUEST migrations")
	cmd.Flags().BoolVar(&cfg.ignoreNoop, "ignore-noop", false, "Skip empty changes instead of failing")
	cmd.Flags().IntVar(&cfg.parallelism, "parallelism", 1, "Concurrent ITERATIVE iterations (writes stay ordered)")
	cmd.Flags().StringVar(&cfg.folderOrigin, "folder-origin", "", "Default directory for folder.origin()")
	cmd.Flags().StringVar(&cfg.folderDestination, "folder-destination", "", "Default directory for folder.destination()")

	return cmd
}

func newValidateCommand(log hclog.Logger, cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config> [migration...]",
		Short: "Load a config file and report validation findings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, _, err := loadConfig(log, cfg, args[0])
			if err != nil {
				return err
			}
			messages := migration.Validate(loaded, args[1:])
			printMessages(messages)
			if migration.HasErrors(messages) {
				return fmt.Errorf("config validation failed")
			}
			fmt.Printf("Configuration '%s' is valid (%d migration(s))\n",
				loaded.ProjectName, loaded.Migrations.Len())
			return nil
		},
	}
}

func newInfoCommand(log hclog.Logger, cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "info <config> [migration]",
		Short: "Show a config's migrations and their descriptions",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, _, err := loadConfig(log, cfg, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Project: %s\n", loaded.ProjectName)
			fmt.Printf("Loaded files: %s\n", strings.Join(loaded.Files.Identifiers(), ", "))

			names := loaded.Migrations.Names()
			if len(args) == 2 {
				names = []string{args[1]}
			}
			for _, name := range names {
				m, err := loaded.Migration(name)
				if err != nil {
					return err
				}
				fmt.Printf("\nMigration: %s (%s)\n", m.Name(), m.ModeName())
				if m.Description() != "" {
					fmt.Printf("  %s\n", m.Description())
				}
				printMultimap("origin", m.OriginDescription())
				printMultimap("destination", m.DestinationDescription())
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("copybara version 0.1.0")
		},
	}
}

func printMessages(messages []migration.Message) {
	for _, m := range messages {
		fmt.Printf("%s: %s\n", m.Level, m.Text)
	}
}

func printMultimap(title string, mm map[string][]string) {
	keys := make([]string, 0, len(mm))
	for k := range mm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("  %s:\n", title)
	for _, k := range keys {
		fmt.Printf("    %s = %s\n", k, strings.Join(mm[k], ", "))
	}
}
